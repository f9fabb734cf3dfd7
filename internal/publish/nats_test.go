package publish

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/dwsmith1983/watchtower/pkg/types"
)

func TestMessageID(t *testing.T) {
	occ := Message{
		PayloadType: types.PayloadTypeOccurrence,
		Occurrence:  &types.IssueOccurrence{ID: "01HZXYZ"},
	}
	assert.Equal(t, "01HZXYZ", messageID(occ))

	sc := Message{
		PayloadType: types.PayloadTypeStatusChange,
		StatusChange: &types.StatusChangeMessage{
			Fingerprint: []string{"detector:1", "grp-1"},
			NewStatus:   types.GroupStatusResolved,
		},
	}
	assert.Equal(t, "detector:1:grp-1:resolved", messageID(sc))

	// Identical status changes dedupe to the same id across redeliveries.
	assert.Equal(t, messageID(sc), messageID(sc))

	assert.Empty(t, messageID(Message{}))
}
