package templatestore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NANATribe/iomt-fhir/errors"
)

func TestNewStore_NilClient(t *testing.T) {
	_, err := NewStore(context.Background(), nil)
	require.Error(t, err)
	assert.True(t, errors.IsInvalid(err))
}

func TestStore_EmptyID(t *testing.T) {
	s := &Store{}

	_, err := s.Get(context.Background(), "")
	require.Error(t, err)
	assert.True(t, errors.IsInvalid(err))

	err = s.Put(context.Background(), "", "{}")
	require.Error(t, err)
	assert.True(t, errors.IsInvalid(err))

	err = s.Delete(context.Background(), "")
	require.Error(t, err)
	assert.True(t, errors.IsInvalid(err))
}
