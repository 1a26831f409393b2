package dynamo

import (
	"fmt"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStrKey(t *testing.T) {
	k := strKey("email", "a@b.com")
	require.Len(t, k, 1)
	s, ok := k["email"].(*types.AttributeValueMemberS)
	require.True(t, ok)
	assert.Equal(t, "a@b.com", s.Value)
}

func TestCompositeKey(t *testing.T) {
	k := compositeKey("email", "a@b.com", "type", "otp")
	require.Len(t, k, 2)
	assert.Equal(t, "a@b.com", k["email"].(*types.AttributeValueMemberS).Value)
	assert.Equal(t, "otp", k["type"].(*types.AttributeValueMemberS).Value)
}

func TestIsConditionalCheckFailed(t *testing.T) {
	wrapped := fmt.Errorf("put: %w", &types.ConditionalCheckFailedException{})
	assert.True(t, isConditionalCheckFailed(wrapped))
	assert.False(t, isConditionalCheckFailed(fmt.Errorf("boom")))
}
