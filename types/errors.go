/*
 * Copyright 2025 tomoncle.
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package types

import (
	"errors"
	"fmt"
)

// Error kinds shared by every package of the module. Match them with errors.Is.
var (
	ErrInvalidArgument = errors.New("invalid argument")
	ErrNotFound        = errors.New("not found")
	ErrOperationFailed = errors.New("operation failed")
)

// Numeric codes carried by Error, kept stable for API consumers.
const (
	CodeInvalidArgument = 1000
	CodeCannotDelete    = 1002
	CodeCannotCreate    = 1004
	CodeNotFound        = 1404
)

// Error is a classified failure. Kind is one of the Err* sentinels.
type Error struct {
	Kind    error
	Code    int
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Is reports whether target is the kind of this error.
func (e *Error) Is(target error) bool {
	return e.Kind == target
}

func (e *Error) Unwrap() error {
	return e.Err
}

// InvalidArgument returns an ErrInvalidArgument error with a formatted message.
func InvalidArgument(format string, args ...interface{}) error {
	return &Error{Kind: ErrInvalidArgument, Code: CodeInvalidArgument, Message: fmt.Sprintf(format, args...)}
}

// NotFound returns an ErrNotFound error for the named resource.
func NotFound(resource string) error {
	return &Error{Kind: ErrNotFound, Code: CodeNotFound, Message: resource + " not found"}
}

// OperationFailed returns an ErrOperationFailed error with the given code.
func OperationFailed(code int, message string) error {
	return &Error{Kind: ErrOperationFailed, Code: code, Message: message}
}

// WrapInvalidArgument classifies err as an invalid argument, keeping it as the cause.
func WrapInvalidArgument(err error, message string) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: ErrInvalidArgument, Code: CodeInvalidArgument, Message: message, Err: err}
}

// CodeOf returns the numeric code of err, or 0 when err is not an *Error.
func CodeOf(err error) int {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return 0
}
