package minio

import (
	"context"
	"errors"
	"net/http"

	"github.com/koustreak/sqlforge/internal/errs"
	miniogo "github.com/minio/minio-go/v7"
)

// mapError translates a MinIO SDK error into a *errs.Error.
func mapError(err error, msg string) *errs.Error {
	if err == nil {
		return nil
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return errs.Wrap(errs.ErrKindTimeout, msg, err)
	}

	var resp miniogo.ErrorResponse
	if errors.As(err, &resp) {
		if kind, ok := kindForCode(resp.Code); ok {
			return errs.Wrap(kind, msg, err)
		}
		if kind, ok := kindForStatus(resp.StatusCode); ok {
			return errs.Wrap(kind, msg, err)
		}
		return errs.Wrap(errs.ErrKindQueryFailed, msg, err)
	}

	// Anything else is a transport failure.
	return errs.Wrap(errs.ErrKindConnectionFailed, msg, err)
}

// kindForCode maps S3 protocol error codes.
func kindForCode(code string) (errs.ErrKind, bool) {
	switch code {
	case "NoSuchBucket", "NoSuchKey", "NoSuchUpload":
		return errs.ErrKindNotFound, true
	case "AccessDenied", "InvalidAccessKeyId", "SignatureDoesNotMatch":
		return errs.ErrKindPermissionDenied, true
	case "InvalidBucketName", "InvalidObjectName", "KeyTooLongError", "EntityTooLarge":
		return errs.ErrKindInvalidInput, true
	case "RequestTimeout", "SlowDown":
		return errs.ErrKindTimeout, true
	}
	return errs.ErrKindUnknown, false
}

func kindForStatus(status int) (errs.ErrKind, bool) {
	switch status {
	case http.StatusNotFound:
		return errs.ErrKindNotFound, true
	case http.StatusForbidden, http.StatusUnauthorized:
		return errs.ErrKindPermissionDenied, true
	case http.StatusBadRequest:
		return errs.ErrKindInvalidInput, true
	case http.StatusServiceUnavailable:
		return errs.ErrKindTimeout, true
	}
	return errs.ErrKindUnknown, false
}
