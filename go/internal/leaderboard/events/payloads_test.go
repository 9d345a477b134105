package events

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodePrize(t *testing.T) {
	p, err := DecodePrize([]byte(`{"playerId":3,"award":250,"pool":9000,"isFirst":true,"isLast":false}`))
	require.NoError(t, err)
	assert.Equal(t, 3, *p.PlayerID)
	assert.Equal(t, int64(250), *p.Award)
	assert.Equal(t, int64(9000), *p.Pool)
	assert.True(t, p.IsFirst)
	assert.False(t, p.IsLast)
}

func TestDecodePrize_Malformed(t *testing.T) {
	tests := map[string]string{
		"missing award":  `{"playerId":3}`,
		"missing player": `{"award":10}`,
		"not json":       `{"playerId":`,
		"wrong type":     `{"playerId":"x","award":1}`,
	}

	for name, data := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := DecodePrize([]byte(data))
			assert.Error(t, err)
		})
	}
}

func TestDecodeUpdate(t *testing.T) {
	p, err := DecodeUpdate([]byte(`{"playerId":12345,"money":10}`))
	require.NoError(t, err)
	assert.Equal(t, 12345, *p.PlayerID)
	assert.Nil(t, p.Pool)

	_, err = DecodeUpdate([]byte(`{"playerId":1}`))
	assert.ErrorIs(t, err, ErrMalformedPayload)
}
