package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestShardPlanValidate(t *testing.T) {
	cases := []struct {
		name    string
		plan    ShardPlan
		wantErr bool
	}{
		{"default plan", DefaultShardPlan, false},
		{"k zero", ShardPlan{K: 0, M: 2}, true},
		{"k only", ShardPlan{K: 1, M: 0}, false},
		{"max legal", ShardPlan{K: 200, M: 55}, false},
		{"over 255", ShardPlan{K: 200, M: 56}, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.plan.Validate()
			if tc.wantErr {
				require.ErrorIs(t, err, ErrInvalidPlan)
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestShardPlanN(t *testing.T) {
	require.Equal(t, 6, DefaultShardPlan.N())
	require.Equal(t, 0, ShardPlan{}.N())
}

func TestShardPlanWriteQuorum(t *testing.T) {
	require.Equal(t, 5, DefaultShardPlan.WriteQuorum()) // k=4, m=2 -> 4+1=5
	require.Equal(t, 3, ShardPlan{K: 3, M: 0}.WriteQuorum())
	require.Equal(t, 6, ShardPlan{K: 4, M: 3}.WriteQuorum()) // ceil(3/2)=2
}

func TestPlacementRecordStale(t *testing.T) {
	now := time.Now()
	p := PlacementRecord{RefreshedAt: now.Add(-2 * time.Hour)}
	require.True(t, p.Stale(time.Hour, now))
	require.False(t, p.Stale(3*time.Hour, now))
}
