package handler

import (
	"bytes"
	"encoding/json"
	"fmt"

	pkgerrors "user-api/pkg/errors"
)

// Field error messages produced while decoding a request body
const (
	MsgNotAString = "Not a valid string."
	MsgNotNull    = "This field may not be null."
)

// BodyError is a request body that could not be read as a JSON object.
// It is reported as 400 with Detail.
type BodyError struct {
	Detail string
}

func (e *BodyError) Error() string {
	return e.Detail
}

// CreateUserRequest represents the decoded body of POST /users/.
// Constraints are enforced by the usecase so that a duplicate dni is
// reported before field errors.
type CreateUserRequest struct {
	Name string
	DNI  string
}

// decodeCreateUserRequest parses a create body. Text fields accept JSON
// strings and numbers, numbers keep their literal form. Unknown fields are
// ignored and an empty body counts as an empty object.
func decodeCreateUserRequest(body []byte) (CreateUserRequest, error) {
	var req CreateUserRequest

	obj, err := decodeObject(body)
	if err != nil {
		return req, err
	}

	fieldErrs := &pkgerrors.ValidationError{}
	req.Name = textField(obj, "name", fieldErrs)
	req.DNI = textField(obj, "dni", fieldErrs)

	if len(fieldErrs.Fields) > 0 {
		return req, fieldErrs
	}
	return req, nil
}

// decodeObject parses body as a single JSON object. Trailing data is a parse error.
func decodeObject(body []byte) (map[string]any, error) {
	if len(bytes.TrimSpace(body)) == 0 {
		return map[string]any{}, nil
	}

	// Unmarshal validates the whole body before decoding
	var raw json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, &BodyError{Detail: "JSON parse error - " + err.Error()}
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var doc any
	if err := dec.Decode(&doc); err != nil {
		return nil, &BodyError{Detail: "JSON parse error - " + err.Error()}
	}

	switch v := doc.(type) {
	case nil:
		return map[string]any{}, nil
	case map[string]any:
		return v, nil
	default:
		return nil, &BodyError{
			Detail: fmt.Sprintf("Invalid data. Expected a dictionary, but got %s.", jsonKind(v)),
		}
	}
}

// textField reads a string field, recording type errors in errs.
// An absent field reads as empty.
func textField(obj map[string]any, name string, errs *pkgerrors.ValidationError) string {
	v, ok := obj[name]
	if !ok {
		return ""
	}

	switch t := v.(type) {
	case string:
		return t
	case json.Number:
		return t.String()
	case nil:
		errs.Add(name, MsgNotNull)
	default:
		errs.Add(name, MsgNotAString)
	}
	return ""
}

func jsonKind(v any) string {
	switch v.(type) {
	case []any:
		return "array"
	case string:
		return "string"
	case json.Number:
		return "number"
	case bool:
		return "bool"
	default:
		return fmt.Sprintf("%T", v)
	}
}
