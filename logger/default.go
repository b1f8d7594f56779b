// Copyright 2026 the FrisbeeLite Authors.  All rights reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package logger

import (
	"os"
	"sync/atomic"
)

var defLogger atomic.Pointer[Logger]

func init() {
	var l Logger = NewSlog(os.Stderr, InfoLevel, FormatConsole)
	defLogger.Store(&l)
}

// Default returns the package-level logger.
func Default() Logger {
	return *defLogger.Load()
}

// SetDefault replaces the package-level logger.
func SetDefault(l Logger) {
	defLogger.Store(&l)
}

func Debug(msg string, keysAndValues ...any) { Default().Debug(msg, keysAndValues...) }

func Info(msg string, keysAndValues ...any) { Default().Info(msg, keysAndValues...) }

func Warn(msg string, keysAndValues ...any) { Default().Warn(msg, keysAndValues...) }

func Error(msg string, keysAndValues ...any) { Default().Error(msg, keysAndValues...) }

// With returns a child of the package-level logger.
func With(keyValues ...any) Logger { return Default().With(keyValues...) }

// Nop returns a Logger that discards everything.
func Nop() Logger { return nopLogger{} }

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Warn(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}
func (n nopLogger) With(...any) Logger { return n }
func (nopLogger) Level() Level         { return ErrorLevel }
func (nopLogger) SetLevel(Level)       {}
