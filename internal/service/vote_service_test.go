package service

import (
	"testing"

	"pestid/internal/dto"
	"pestid/internal/models"
	"pestid/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func vote(left, right, winner string) models.Vote {
	return models.Vote{LeftModel: left, RightModel: right, Winner: winner}
}

func TestAggregateCountsBothBadOnlyInVoteCount(t *testing.T) {
	votes := []models.Vote{
		vote("gpt-4o", "llava", models.WinnerLeft),
		vote("gpt-4o", "llava", models.WinnerRight),
		vote("gpt-4o", "llava", models.WinnerTie),
		vote("gpt-4o", "llava", models.WinnerBothBad),
		vote("gpt-4o", "llava", models.WinnerLeft),
	}

	summary := Aggregate(votes)

	assert.Equal(t, 5, summary.TotalVotes)
	assert.Equal(t, map[string]int{"left": 2, "right": 1, "tie": 1, "both-bad": 1}, summary.VoteCount)
	assert.Equal(t, ModelStats{Wins: 2, Losses: 1, Ties: 1, Total: 4}, summary.ModelStats["gpt-4o"])
	assert.Equal(t, ModelStats{Wins: 1, Losses: 2, Ties: 1, Total: 4}, summary.ModelStats["llava"])
	require.Len(t, summary.Pairs, 1)
	assert.Equal(t, PairStats{LeftModel: "gpt-4o", RightModel: "llava", Left: 2, Right: 1, Tie: 1, BothBad: 1}, summary.Pairs[0])
}

func TestAggregateEmpty(t *testing.T) {
	summary := Aggregate(nil)
	assert.Zero(t, summary.TotalVotes)
	assert.Len(t, summary.VoteCount, 4)
	assert.Empty(t, summary.ModelStats)
	assert.NotNil(t, summary.Pairs)
}

func TestAggregateOnlyBothBadLeavesNoModelStats(t *testing.T) {
	summary := Aggregate([]models.Vote{vote("a", "b", models.WinnerBothBad)})
	assert.Equal(t, 1, summary.VoteCount[models.WinnerBothBad])
	assert.Empty(t, summary.ModelStats)
}

func TestVoteServiceSubmitAndSummary(t *testing.T) {
	svc := NewVoteService(repository.NewVoteRepository(newTestDB(t)))

	for _, winner := range []string{"left", "left", "tie"} {
		_, err := svc.Submit(3, &dto.VoteRequest{LeftModel: "m1", RightModel: "m2", Winner: winner, BattleID: "b-1"})
		require.NoError(t, err)
	}

	summary, err := svc.Summary()
	require.NoError(t, err)
	assert.Equal(t, 3, summary.TotalVotes)
	assert.Equal(t, 2, summary.ModelStats["m1"].Wins)
	assert.Equal(t, 1, summary.ModelStats["m2"].Ties)
}
