package service

import (
	"fmt"
	"sort"
	"time"

	"pestid/internal/dto"
	"pestid/internal/models"
	"pestid/internal/repository"

	"github.com/google/uuid"
)

// ModelStats 单个模型的胜负统计，不含 both-bad
type ModelStats struct {
	Wins   int `json:"wins"`
	Losses int `json:"losses"`
	Ties   int `json:"ties"`
	Total  int `json:"total"`
}

// PairStats 一组对战模型的投票分布
type PairStats struct {
	LeftModel  string `json:"leftModel"`
	RightModel string `json:"rightModel"`
	Left       int    `json:"left"`
	Right      int    `json:"right"`
	Tie        int    `json:"tie"`
	BothBad    int    `json:"bothBad"`
}

// VoteSummary 投票汇总
type VoteSummary struct {
	TotalVotes int                   `json:"totalVotes"`
	VoteCount  map[string]int        `json:"voteCount"`
	ModelStats map[string]ModelStats `json:"modelStats"`
	Pairs      []PairStats           `json:"pairs"`
}

// Aggregate 汇总投票
func Aggregate(votes []models.Vote) VoteSummary {
	summary := VoteSummary{
		TotalVotes: len(votes),
		VoteCount: map[string]int{
			models.WinnerLeft:    0,
			models.WinnerRight:   0,
			models.WinnerTie:     0,
			models.WinnerBothBad: 0,
		},
		ModelStats: make(map[string]ModelStats),
		Pairs:      []PairStats{},
	}

	pairIndex := make(map[[2]string]int)
	for _, v := range votes {
		if _, known := summary.VoteCount[v.Winner]; !known {
			continue
		}
		summary.VoteCount[v.Winner]++

		key := [2]string{v.LeftModel, v.RightModel}
		i, ok := pairIndex[key]
		if !ok {
			i = len(summary.Pairs)
			pairIndex[key] = i
			summary.Pairs = append(summary.Pairs, PairStats{LeftModel: v.LeftModel, RightModel: v.RightModel})
		}
		pair := &summary.Pairs[i]

		left := summary.ModelStats[v.LeftModel]
		right := summary.ModelStats[v.RightModel]
		switch v.Winner {
		case models.WinnerLeft:
			pair.Left++
			left.Wins++
			right.Losses++
		case models.WinnerRight:
			pair.Right++
			right.Wins++
			left.Losses++
		case models.WinnerTie:
			pair.Tie++
			left.Ties++
			right.Ties++
		default:
			pair.BothBad++
			continue
		}
		left.Total++
		right.Total++
		summary.ModelStats[v.LeftModel] = left
		summary.ModelStats[v.RightModel] = right
	}

	sort.SliceStable(summary.Pairs, func(i, j int) bool {
		a, b := summary.Pairs[i], summary.Pairs[j]
		return a.Left+a.Right+a.Tie+a.BothBad > b.Left+b.Right+b.Tie+b.BothBad
	})
	return summary
}

// VoteService 对战投票
type VoteService struct {
	voteRepo *repository.VoteRepository
}

// NewVoteService 创建投票服务
func NewVoteService(voteRepo *repository.VoteRepository) *VoteService {
	return &VoteService{voteRepo: voteRepo}
}

// Submit 记录一次投票
func (s *VoteService) Submit(userID uint, req *dto.VoteRequest) (*models.Vote, error) {
	vote := &models.Vote{
		ID:         uuid.NewString(),
		LeftModel:  req.LeftModel,
		RightModel: req.RightModel,
		Winner:     req.Winner,
		ImageID:    req.ImageID,
		BattleID:   req.BattleID,
		Prompt:     req.Prompt,
		UserID:     userID,
		CreatedAt:  time.Now().UTC(),
	}
	if err := s.voteRepo.Create(vote); err != nil {
		return nil, fmt.Errorf("保存投票失败: %w", err)
	}
	return vote, nil
}

// Summary 全部投票的汇总
func (s *VoteService) Summary() (*VoteSummary, error) {
	votes, err := s.voteRepo.ListAll()
	if err != nil {
		return nil, fmt.Errorf("查询投票失败: %w", err)
	}
	summary := Aggregate(votes)
	return &summary, nil
}
