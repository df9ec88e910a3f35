package protocol

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestError_Kinds(t *testing.T) {
	tests := []struct {
		name string
		err  error
		kind ErrorKind
	}{
		{"format", NewFormatError("bad"), KindFormat},
		{"index", NewIndexError(Add{Id: 0, Tag: 1, ChildId: 1, Index: 9}, 0), KindFormat},
		{"duplicate", NewDuplicateIdError(Create{Id: 1, Tag: 1}), KindIdentity},
		{"unknown", NewUnknownIdError(1, nil), KindIdentity},
		{"tag", NewUnknownTagError(5, "Unknown widget tag %d", 5), KindSchema},
		{"widget", NewDuplicateWidgetError(1), KindMisuse},
		{"registry", NewRegistryMissError(1), KindMisuse},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wrapped := fmt.Errorf("applying batch: %w", tt.err)
			assert.Equal(t, tt.kind == KindFormat, IsFormatError(wrapped))
			assert.Equal(t, tt.kind == KindIdentity, IsIdentityError(wrapped))
			assert.Equal(t, tt.kind == KindSchema, IsSchemaError(wrapped))
			assert.Equal(t, tt.kind == KindMisuse, IsMisuseError(wrapped))
		})
	}
}

func TestError_Messages(t *testing.T) {
	assert.Equal(t, "Insert attempted to replace existing widget with ID 1", NewDuplicateIdError(Create{Id: 1, Tag: 2}).Error())
	assert.Equal(t, "Unknown widget ID 7", NewUnknownIdError(7, nil).Error())
	assert.Equal(t, "Attempted to add widget with ID 3 but one already exists", NewDuplicateWidgetError(3).Error())
}

func TestCodeOf_NonProtocolError(t *testing.T) {
	assert.Equal(t, ErrorCode(""), CodeOf(fmt.Errorf("plain")))
	assert.False(t, IsFormatError(nil))
}
