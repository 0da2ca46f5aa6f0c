package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveOnlyOnce(t *testing.T) {
	at := time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC)
	cr := &ChangeRequest{ID: "cr-1", Status: ChangeRequestPending}
	assert.Nil(t, cr.Review)

	require.NoError(t, cr.Resolve(ChangeRequestRejected, "admin-1", "alamat tidak jelas", at))
	assert.Equal(t, ChangeRequestRejected, cr.Status)
	require.NotNil(t, cr.Review)
	assert.Equal(t, "admin-1", cr.Review.ReviewerID)
	assert.Equal(t, at, cr.Review.ReviewedAt)

	err := cr.Resolve(ChangeRequestApproved, "admin-2", "", at.Add(time.Hour))
	assert.ErrorIs(t, err, ErrAlreadyResolved)
	assert.Equal(t, ChangeRequestRejected, cr.Status)
	assert.Equal(t, "admin-1", cr.Review.ReviewerID)
}

func TestResolveRejectsPendingTarget(t *testing.T) {
	cr := &ChangeRequest{Status: ChangeRequestPending}
	assert.Error(t, cr.Resolve(ChangeRequestPending, "admin-1", "", time.Now()))
	assert.Nil(t, cr.Review)
}

func TestFieldChangesScan(t *testing.T) {
	var fc FieldChanges
	require.NoError(t, fc.Scan([]byte(`{"alamat":"Jl. Kenanga 3"}`)))
	assert.Equal(t, "Jl. Kenanga 3", fc["alamat"])

	require.NoError(t, fc.Scan(nil))
	assert.Empty(t, fc)

	assert.Error(t, fc.Scan(42))

	v, err := FieldChanges(nil).Value()
	require.NoError(t, err)
	assert.Equal(t, []byte("{}"), v)
}
