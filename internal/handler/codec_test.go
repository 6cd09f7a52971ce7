package handler

import (
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/ogen-go/ogen/validate"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/storefront/internal/domain/apperr"
)

func TestDecodeTime(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    time.Time
		wantErr string
	}{
		{name: "utc timestamp", input: `"2025-03-01T10:00:00Z"`, want: time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)},
		{name: "offset is normalized", input: `"2025-03-01T16:00:00+06:00"`, want: time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)},
		{name: "plain date", input: `"2025-03-01"`, want: time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)},
		{name: "not a date", input: `"yesterday"`, wantErr: "startDate must be an RFC 3339 date"},
		{name: "not a string", input: `1740823200`, wantErr: "startDate must be a date string"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := decodeTime(jx.DecodeStr(tt.input), "startDate")
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Equal(t, apperr.Invalid, apperr.KindOf(err))
				assert.Equal(t, tt.wantErr, apperr.MessageOf(err))
				return
			}
			require.NoError(t, err)
			assert.True(t, tt.want.Equal(got), "got %s", got)
			assert.Equal(t, time.UTC, got.Location())
		})
	}
}

func TestTimestamp(t *testing.T) {
	e := jx.GetEncoder()
	defer jx.PutEncoder(e)

	timestamp(e, time.Date(2025, 3, 1, 16, 0, 0, 0, time.FixedZone("BST", 6*3600)))
	assert.Equal(t, `"2025-03-01T10:00:00Z"`, e.String())
}

func TestFieldError(t *testing.T) {
	require.NoError(t, fieldError("quantity", "unused", quantityLimit.Validate(5)))

	err := fieldError("quantity", "quantity must not exceed 10000", quantityLimit.Validate(10_001))
	require.Error(t, err)
	assert.Equal(t, apperr.Invalid, apperr.KindOf(err))
	assert.Equal(t, "quantity must not exceed 10000", apperr.MessageOf(err))

	var verr *validate.Error
	require.True(t, errors.As(err, &verr))
	require.Len(t, verr.Fields, 1)
	assert.Equal(t, "quantity", verr.Fields[0].Name)
}
