package service

import (
	"context"
	"fmt"
	"strings"

	"pestid/pkg/imageprep"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// BattleSide 对战中一侧模型的结果，失败时 Output 为 nil
type BattleSide struct {
	Model  string        `json:"model"`
	Output *VisionOutput `json:"output,omitempty"`
	Error  string        `json:"error,omitempty"`
	Status int           `json:"status,omitempty"`
}

// BattleResult 对战结果
type BattleResult struct {
	BattleID string     `json:"battleId"`
	Left     BattleSide `json:"left"`
	Right    BattleSide `json:"right"`
}

// BattleRequest 对战请求
type BattleRequest struct {
	Image         *imageprep.Prepared
	LeftModel     string
	RightModel    string
	Prompt        string
	OllamaBaseURL string
}

// BattleService 同一张图片交给两个模型，结果并排返回
type BattleService struct {
	openRouter *OpenRouterService
	ollama     *OllamaService
}

// NewBattleService 创建对战服务
func NewBattleService(openRouter *OpenRouterService, ollama *OllamaService) *BattleService {
	return &BattleService{openRouter: openRouter, ollama: ollama}
}

// Run 并发调用两侧模型，任一侧失败不影响另一侧
func (s *BattleService) Run(ctx context.Context, req BattleRequest) (*BattleResult, error) {
	if req.Image == nil || req.LeftModel == "" || req.RightModel == "" {
		return nil, ErrInvalidInput
	}

	result := &BattleResult{
		BattleID: uuid.NewString(),
		Left:     BattleSide{Model: req.LeftModel},
		Right:    BattleSide{Model: req.RightModel},
	}

	var g errgroup.Group
	for _, side := range []*BattleSide{&result.Left, &result.Right} {
		side := side
		g.Go(func() error {
			defer func() {
				if r := recover(); r != nil {
					side.Output = nil
					side.Error = fmt.Sprintf("panic: %v", r)
				}
			}()

			output, err := s.dispatch(ctx, side.Model, req)
			if err != nil {
				side.Error = err.Error()
				side.Status = UpstreamStatus(err)
				return nil
			}
			side.Output = output
			return nil
		})
	}
	_ = g.Wait()

	return result, nil
}

func (s *BattleService) dispatch(ctx context.Context, model string, req BattleRequest) (*VisionOutput, error) {
	vision := VisionRequest{Image: req.Image, Prompt: req.Prompt}
	if name, ok := strings.CutPrefix(model, OllamaModelPrefix); ok {
		vision.Model = name
		vision.BaseURL = req.OllamaBaseURL
		return s.ollama.Analyze(ctx, vision)
	}
	vision.Model = model
	return s.openRouter.Analyze(ctx, vision)
}
