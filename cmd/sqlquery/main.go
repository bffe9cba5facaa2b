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

// Command sqlquery checks, renders and watches directories of statement
// files.
//
//	sqlquery lint ./sql
//	sqlquery render user.select ./sql --param status=active --dialect postgres
//	sqlquery watch ./sql --notify
package main

import (
	"fmt"
	"os"
)

func main() {
	registerDrivers()
	if err := newRootCommand(newApp()).Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
