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

package main

import (
	"fmt"
	"io"

	"github.com/fatih/color"
)

var (
	successColor = color.New(color.FgGreen, color.Bold)
	errorColor   = color.New(color.FgRed, color.Bold)
	warningColor = color.New(color.FgYellow, color.Bold)
	infoColor    = color.New(color.FgCyan)
)

func printSuccess(w io.Writer, format string, args ...any) {
	_, _ = successColor.Fprint(w, "✓ ")
	_, _ = fmt.Fprintf(w, format+"\n", args...)
}

func printError(w io.Writer, format string, args ...any) {
	_, _ = errorColor.Fprint(w, "✗ ")
	_, _ = fmt.Fprintf(w, format+"\n", args...)
}

func printWarning(w io.Writer, format string, args ...any) {
	_, _ = warningColor.Fprint(w, "! ")
	_, _ = fmt.Fprintf(w, format+"\n", args...)
}

func printInfo(w io.Writer, format string, args ...any) {
	_, _ = infoColor.Fprintf(w, format+"\n", args...)
}
