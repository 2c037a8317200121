/*
Copyright Gen Digital Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package logfields

import (
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Log Fields.
const (
	FieldCommand        = "command"
	FieldCredentialID   = "credentialID"
	FieldCryptosuite    = "cryptosuite"
	FieldEndpointID     = "endpointID"
	FieldHostURL        = "hostURL"
	FieldImplementation = "implementation"
	FieldJobID          = "jobID"
	FieldKeyType        = "keyType"
	FieldOutcome        = "outcome"
	FieldPath           = "path"
	FieldResponses      = "responses"
	FieldSleep          = "sleep"
	FieldSummary        = "summary"
	FieldTag            = "tag"
	FieldTestName       = "testName"
	FieldTotalCases     = "totalCases"
	FieldUserLogLevel   = "userLogLevel"
	FieldVCVersion      = "vcVersion"
	FieldWorkers        = "workers"
)

// WithCommand sets the Command field.
func WithCommand(command string) zap.Field {
	return zap.String(FieldCommand, command)
}

// WithCredentialID sets the CredentialID field.
func WithCredentialID(credentialID string) zap.Field {
	return zap.String(FieldCredentialID, credentialID)
}

// WithCryptosuite sets the Cryptosuite field.
func WithCryptosuite(suite string) zap.Field {
	return zap.String(FieldCryptosuite, suite)
}

// WithEndpointID sets the EndpointID field.
func WithEndpointID(endpointID string) zap.Field {
	return zap.String(FieldEndpointID, endpointID)
}

// WithHostURL sets the HostURL field.
func WithHostURL(hostURL string) zap.Field {
	return zap.String(FieldHostURL, hostURL)
}

// WithImplementation sets the Implementation field.
func WithImplementation(name string) zap.Field {
	return zap.String(FieldImplementation, name)
}

// WithJobID sets the JobID field.
func WithJobID(jobID string) zap.Field {
	return zap.String(FieldJobID, jobID)
}

// WithKeyType sets the KeyType field.
func WithKeyType(keyType string) zap.Field {
	return zap.String(FieldKeyType, keyType)
}

// WithOutcome sets the Outcome field.
func WithOutcome(outcome string) zap.Field {
	return zap.String(FieldOutcome, outcome)
}

// WithPath sets the Path field.
func WithPath(path string) zap.Field {
	return zap.String(FieldPath, path)
}

// WithResponses sets the Responses field.
func WithResponses(responses int) zap.Field {
	return zap.Int(FieldResponses, responses)
}

// WithSleep sets the sleep field.
func WithSleep(sleep time.Duration) zap.Field {
	return zap.Duration(FieldSleep, sleep)
}

// WithSummary sets the Summary field.
func WithSummary(summary interface{}) zap.Field {
	return zap.Inline(NewObjectMarshaller(FieldSummary, summary))
}

// WithTag sets the Tag field.
func WithTag(tag string) zap.Field {
	return zap.String(FieldTag, tag)
}

// WithTestName sets the TestName field.
func WithTestName(testName string) zap.Field {
	return zap.String(FieldTestName, testName)
}

// WithTotalCases sets the TotalCases field.
func WithTotalCases(totalCases int) zap.Field {
	return zap.Int(FieldTotalCases, totalCases)
}

// WithUserLogLevel sets the UserLogLevel field.
func WithUserLogLevel(logLevel string) zap.Field {
	return zap.String(FieldUserLogLevel, logLevel)
}

// WithVCVersion sets the VCVersion field.
func WithVCVersion(version string) zap.Field {
	return zap.String(FieldVCVersion, version)
}

// WithWorkers sets the Workers field.
func WithWorkers(workers int) zap.Field {
	return zap.Int(FieldWorkers, workers)
}

// ObjectMarshaller uses reflection to marshal an object's fields.
type ObjectMarshaller struct {
	key string
	obj interface{}
}

// NewObjectMarshaller returns a new ObjectMarshaller.
func NewObjectMarshaller(key string, obj interface{}) *ObjectMarshaller {
	return &ObjectMarshaller{key: key, obj: obj}
}

// MarshalLogObject marshals the object's fields.
func (m *ObjectMarshaller) MarshalLogObject(e zapcore.ObjectEncoder) error {
	return e.AddReflected(m.key, m.obj)
}
