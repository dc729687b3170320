package ir

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMovementID(t *testing.T) {
	tests := []struct {
		movement Movement
		want     int
	}{
		{MovementNothing, 3},
		{MovementOneToOne, 1},
		{MovementScatterGather, 2},
		{MovementBroadcast, 3},
	}

	for _, tt := range tests {
		t.Run(tt.movement.String(), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.movement.ID())
		})
	}
}

func TestMovementNothingAliasesBroadcastOnlyOnWire(t *testing.T) {
	assert.Equal(t, MovementNothing.ID(), MovementBroadcast.ID(), "wire ids alias")
	assert.NotEqual(t, MovementNothing, MovementBroadcast, "variants stay distinct")
}

func TestMovementIDPanicsOnUnknown(t *testing.T) {
	assert.Panics(t, func() { Movement(42).ID() })
}

func TestMovementsAreTotal(t *testing.T) {
	all := Movements()
	require.Len(t, all, 4)
	for _, m := range all {
		assert.True(t, m.Valid())
		assert.NotPanics(t, func() { m.ID() })
	}
	assert.False(t, Movement(-1).Valid())
}

func TestParseMovement(t *testing.T) {
	for _, m := range Movements() {
		parsed, err := ParseMovement(m.String())
		require.NoError(t, err)
		assert.Equal(t, m, parsed)
	}

	_, err := ParseMovement("shuffle")
	assert.Error(t, err)
}

func TestMovementText(t *testing.T) {
	data, err := json.Marshal(struct {
		M Movement `json:"m"`
	}{MovementScatterGather})
	require.NoError(t, err)
	assert.JSONEq(t, `{"m":"scatter_gather"}`, string(data))

	var out struct {
		M Movement `json:"m"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"m":"broadcast"}`), &out))
	assert.Equal(t, MovementBroadcast, out.M)

	assert.Error(t, json.Unmarshal([]byte(`{"m":"teleport"}`), &out))
}

func TestDecodeMovement(t *testing.T) {
	tests := []struct {
		name    string
		id      int
		targets int
		want    Movement
		wantErr bool
	}{
		{"one to one", 1, 1, MovementOneToOne, false},
		{"scatter gather", 2, 3, MovementScatterGather, false},
		{"broadcast with targets", 3, 2, MovementBroadcast, false},
		{"empty broadcast is nothing", 3, 0, MovementNothing, false},
		{"zero id", 0, 0, 0, true},
		{"unknown id", 4, 1, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodeMovement(tt.id, tt.targets)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
