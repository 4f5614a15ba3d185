package lambda

import (
	"errors"
	"fmt"

	"github.com/aws/smithy-go"

	"github.com/dadevel/lemma/api"
)

// mapAWSError adds the failed operation to an AWS error. A missing function
// becomes *api.NotFoundError; the SDK error stays reachable through errors.As.
func mapAWSError(err error, op, name string) error {
	if err == nil {
		return nil
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) && apiErr.ErrorCode() == "ResourceNotFoundException" {
		return &api.NotFoundError{Resource: "instance", ID: name, Err: err}
	}
	return fmt.Errorf("%s %s: %w", op, name, err)
}
