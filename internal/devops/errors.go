// Copyright 2025 Christian Helle
//
// Licensed under the MIT License (the "License"); you may not use this
// file except in compliance with the License. See the LICENSE file in the
// project root for the full license text.

package devops

import (
	"net/http"

	adoerrors "github.com/christianhelle/azdocli/internal/errors"
)

var notFoundSentinels = map[Resource]error{
	ResourceWorkItem:    adoerrors.ErrWorkItemNotFound,
	ResourceRepository:  adoerrors.ErrRepositoryNotFound,
	ResourcePipeline:    adoerrors.ErrPipelineNotFound,
	ResourceRun:         adoerrors.ErrRunNotFound,
	ResourcePullRequest: adoerrors.ErrPullRequestNotFound,
	ResourceProject:     adoerrors.ErrProjectNotFound,
}

// mapError translates API failures into domain errors. 401, 403 and 203
// mean the credential was rejected; 404 means the resource does not
// exist. Everything else passes through unchanged.
func (b *Backend) mapError(resource Resource, id string, err error) error {
	apiErr, ok := adoerrors.AsAPIError(err)
	if !ok || apiErr.Kind != adoerrors.APIClient {
		return err
	}

	switch apiErr.Status {
	case http.StatusUnauthorized, http.StatusForbidden, http.StatusNonAuthoritativeInfo:
		return adoerrors.NewAuthError(adoerrors.AuthDenied, b.Organization, err)
	case http.StatusNotFound:
		if id == "" {
			return err
		}
		sentinel, ok := notFoundSentinels[resource]
		if !ok {
			sentinel = adoerrors.ErrNotFound
		}
		return adoerrors.NotFound(string(resource), id, sentinel, err)
	default:
		return err
	}
}
