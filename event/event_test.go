package event

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/NANATribe/iomt-fhir/pkg/timestamp"
)

func TestDeviceEvent_Validate(t *testing.T) {
	valid := DeviceEvent{
		Body:           []byte(`{"heartRate":72}`),
		SequenceNumber: 7,
		EnqueuedAt:     timestamp.Now(),
		Partition:      "0",
	}
	assert.NoError(t, valid.Validate())

	empty := valid
	empty.Body = nil
	assert.Error(t, empty.Validate())

	badTime := valid
	badTime.EnqueuedAt = -5
	assert.Error(t, badTime.Validate())
}

func TestDeviceEvent_Size(t *testing.T) {
	e := DeviceEvent{Body: []byte("12345")}
	assert.Equal(t, 5, e.Size())
	assert.Equal(t, 0, DeviceEvent{}.Size())
}
