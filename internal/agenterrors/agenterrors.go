//  Copyright 2024 Google LLC
//
//  Licensed under the Apache License, Version 2.0 (the "License");
//  you may not use this file except in compliance with the License.
//  You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
//  Unless required by applicable law or agreed to in writing, software
//  distributed under the License is distributed on an "AS IS" BASIS,
//  WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
//  See the License for the specific language governing permissions and
//  limitations under the License.

// Package agenterrors defines the agent's error taxonomy so callers can
// branch on failure kind without parsing message text.
package agenterrors

import "fmt"

// Kind classifies an agent error for propagation-policy decisions.
type Kind string

const (
	KindConfig      Kind = "config"
	KindDatasource  Kind = "datasource"
	KindNoDatasource Kind = "no_datasource"
	KindNetwork     Kind = "network"
	KindIo          Kind = "io"
	KindParseYAML   Kind = "parse_yaml"
	KindParseJSON   Kind = "parse_json"
	KindHttp        Kind = "http"
	KindModule      Kind = "module"
	KindStage       Kind = "stage"
	KindUserGroup   Kind = "user_group"
	KindCommand     Kind = "command"
	KindPermission  Kind = "permission"
	KindTimeout     Kind = "timeout"
	KindInvalidData Kind = "invalid_data"
)

// Error is the agent's uniform error envelope.
type Error struct {
	Kind Kind
	// Subject holds the module or stage name for KindModule/KindStage errors.
	Subject string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Subject != "" {
		if e.Err != nil {
			return fmt.Sprintf("%s[%s]: %s: %v", e.Kind, e.Subject, e.Message, e.Err)
		}
		return fmt.Sprintf("%s[%s]: %s", e.Kind, e.Subject, e.Message)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// New builds an Error of the given kind with no wrapped cause.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap builds an Error of the given kind wrapping err.
func Wrap(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// Module builds a KindModule error naming the failing module.
func Module(name, message string, err error) *Error {
	return &Error{Kind: KindModule, Subject: name, Message: message, Err: err}
}

// Stage builds a KindStage error naming the failing stage.
func Stage(name, message string, err error) *Error {
	return &Error{Kind: KindStage, Subject: name, Message: message, Err: err}
}

// Is reports whether err (or anything it wraps) has the given Kind.
func Is(err error, kind Kind) bool {
	for err != nil {
		if ae, ok := err.(*Error); ok {
			if ae.Kind == kind {
				return true
			}
			err = ae.Err
			continue
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}
