package marketplace

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/google/uuid"

	"github.com/smallbiznis/marketfill/internal/marketplace/domain"
)

// operationLocationSegments is the exact number of path segments an
// operation-location URI carries:
// /api/saas/subscriptions/{subscriptionId}/operations/{operationId}
const operationLocationSegments = 7

// ExtractOperationID parses an operation-location value returned by the
// upstream and returns the operation identifier it names. The location
// must be a URI whose path has exactly seven segments, whose fifth
// segment is the identifier of expectedSubscription and whose seventh
// segment is an operation identifier. Anything else is rejected with a
// structured error naming the reason.
func ExtractOperationID(location string, expectedSubscription uuid.UUID) (uuid.UUID, error) {
	u, err := url.Parse(location)
	if err != nil {
		return uuid.Nil, &domain.OperationLocationError{Location: location, Reason: "not a valid URI"}
	}

	segments := strings.Split(u.EscapedPath(), "/")
	if len(segments) != operationLocationSegments {
		return uuid.Nil, &domain.OperationLocationError{
			Location: location,
			Reason:   fmt.Sprintf("expected %d path segments, got %d", operationLocationSegments, len(segments)),
		}
	}

	subscriptionID, err := uuid.Parse(segments[4])
	if err != nil {
		return uuid.Nil, &domain.OperationLocationError{Location: location, Reason: "subscription segment is not a UUID"}
	}
	if subscriptionID != expectedSubscription {
		return uuid.Nil, &domain.OperationLocationError{
			Location: location,
			Reason:   fmt.Sprintf("subscription segment %s does not match %s", subscriptionID, expectedSubscription),
		}
	}

	operationID, err := uuid.Parse(segments[6])
	if err != nil {
		return uuid.Nil, &domain.OperationLocationError{Location: location, Reason: "operation segment is not a UUID"}
	}

	return operationID, nil
}
