package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/mattjoyce/edgeagent/internal/requests"
)

// supportedSchemaMajor is the payload schema major version these handlers accept.
const supportedSchemaMajor = 1

var validate = newValidator()

// newValidator reports fields by their JSON names.
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// decodePayload unmarshals a required JSON payload into v and validates its
// struct tags. Failures are client errors.
func decodePayload(payload *string, v any) error {
	if payload == nil || strings.TrimSpace(*payload) == "" {
		return requests.NullArgument("payload")
	}

	dec := json.NewDecoder(bytes.NewReader([]byte(*payload)))
	if err := dec.Decode(v); err != nil {
		return requests.InvalidArgument("payload is not valid JSON: %v", err)
	}

	if err := validate.Struct(v); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return requests.InvalidArgument("payload field %s failed %q validation", fe.Field(), fe.Tag())
		}
		return requests.InvalidArgument("invalid payload: %v", err)
	}
	return nil
}

// checkSchemaVersion accepts "<major>.<minor>" where major is supported.
func checkSchemaVersion(v string) error {
	majorStr, _, _ := strings.Cut(v, ".")
	major, err := strconv.Atoi(majorStr)
	if err != nil {
		return requests.InvalidArgument("schemaVersion %q is not a valid version", v)
	}
	if major != supportedSchemaMajor {
		return requests.InvalidOperation("schemaVersion %s is not supported, expected %d.x", v, supportedSchemaMajor)
	}
	return nil
}

func marshalPayload(v any) (*string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal response: %w", err)
	}
	s := string(b)
	return &s, nil
}
