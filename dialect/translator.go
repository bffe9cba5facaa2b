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

package dialect

import "strconv"

// Translator converts a named parameter into the placeholder syntax of a
// database. Stateful translators number placeholders in call order, so a
// fresh Translator is required for every rendered statement.
type Translator interface {
	// Translate returns the placeholder for the named parameter.
	Translate(name string) string
}

// TranslateFunc is a function that implements Translator.
type TranslateFunc func(name string) string

// Translate implements Translator.
func (f TranslateFunc) Translate(name string) string { return f(name) }

// QuestionTranslator emits "?" for every parameter.
var QuestionTranslator Translator = TranslateFunc(func(string) string { return "?" })

// NumberedTranslator returns a Translator emitting prefix followed by a
// 1-based position, such as $1, $2 or :1, :2.
func NumberedTranslator(prefix string) Translator {
	var n int
	return TranslateFunc(func(string) string {
		n++
		return prefix + strconv.Itoa(n)
	})
}
