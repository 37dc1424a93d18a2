package dto

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/spec-kit/ticket-engine/pkg/util/errorutil"
)

func TestValidateCreateTicketRequest(t *testing.T) {
	priority := "SOON"
	req := CreateTicketRequest{
		Subject:  strings.Repeat("x", 201),
		Body:     "hello",
		Channel:  "FAX",
		Priority: &priority,
	}

	err := Validate(req)

	domainErr := apperrors.ToDomainError(err)
	require.NotNil(t, domainErr)
	assert.Equal(t, "VALIDATION_FAILED", domainErr.Code)
	assert.Equal(t, "max=200", domainErr.Details["subject"])
	assert.Equal(t, "oneof=EMAIL CHAT WEB MESSAGING", domainErr.Details["channel"])
	assert.Equal(t, "oneof=LOW MEDIUM HIGH URGENT", domainErr.Details["priority"])
	assert.NotContains(t, domainErr.Details, "body")
}

func TestValidateBulkRequest(t *testing.T) {
	assert.NoError(t, Validate(BulkActionRequest{
		TicketIDs: []string{"6f1c1f8e-2d4b-4c4e-9a57-0c6f5b8e9d11"},
		Action:    "unassign",
	}))

	err := Validate(BulkActionRequest{TicketIDs: []string{}, Action: "delete"})
	domainErr := apperrors.ToDomainError(err)
	assert.Contains(t, domainErr.Details, "ticketIds")
	assert.Contains(t, domainErr.Details, "action")

	err = Validate(BulkActionRequest{TicketIDs: []string{"nope"}, Action: "assign"})
	assert.Contains(t, apperrors.ToDomainError(err).Details, "ticketIds[0]")
}

func TestOptionalDistinguishesNullFromAbsent(t *testing.T) {
	var absent, null, set PatchTicketRequest
	require.NoError(t, json.Unmarshal([]byte(`{"status":"OPEN"}`), &absent))
	require.NoError(t, json.Unmarshal([]byte(`{"assignedToId":null}`), &null))
	require.NoError(t, json.Unmarshal([]byte(`{"assignedToId":"abc"}`), &set))

	assert.False(t, absent.AssignedToID.Set)
	assert.True(t, null.AssignedToID.Set)
	assert.Nil(t, null.AssignedToID.Value)
	assert.True(t, set.AssignedToID.Set)
	assert.Equal(t, "abc", *set.AssignedToID.Value)
}
