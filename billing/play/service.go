package play

import (
	"context"
	"net/http"

	"github.com/pkg/errors"
	"google.golang.org/api/androidpublisher/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

// NewService creates a Google Play Developer API client from the contents of
// a service account JSON file.
func NewService(ctx context.Context, serviceAccountJSON []byte, opts ...option.ClientOption) (*androidpublisher.Service, error) {
	opts = append([]option.ClientOption{
		option.WithCredentialsJSON(serviceAccountJSON),
		option.WithScopes(androidpublisher.AndroidpublisherScope),
	}, opts...)

	svc, err := androidpublisher.NewService(ctx, opts...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create android publisher client")
	}
	return svc, nil
}

func isNotFound(err error) bool {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		return apiErr.Code == http.StatusNotFound || apiErr.Code == http.StatusGone
	}
	return false
}
