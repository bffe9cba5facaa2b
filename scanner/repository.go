/*
Copyright 2023 eatmoreapple

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package scanner

import (
	"fmt"
	"path/filepath"

	"github.com/mitchellh/go-homedir"
	"github.com/spf13/afero"
)

// Repository locates the directories statement files are read from.
type Repository interface {
	// Dir returns the path of the directory name.
	Dir(name string) (string, error)
}

// DirRepository is a Repository rooted at a directory of Fs.
// Root may start with ~.
type DirRepository struct {
	Fs   afero.Fs
	Root string
}

// Dir implements Repository. The directory must exist.
func (r DirRepository) Dir(name string) (string, error) {
	root, err := homedir.Expand(r.Root)
	if err != nil {
		return "", err
	}
	fs := r.Fs
	if fs == nil {
		fs = afero.NewOsFs()
	}
	dir := filepath.Join(root, name)
	info, err := fs.Stat(dir)
	if err != nil {
		return "", err
	}
	if !info.IsDir() {
		return "", fmt.Errorf("%s is not a directory", dir)
	}
	return dir, nil
}

var _ Repository = DirRepository{}
