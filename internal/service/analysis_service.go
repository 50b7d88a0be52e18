package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"pestid/internal/metrics"
	"pestid/internal/models"
	"pestid/internal/repository"
	"pestid/pkg/interpreter"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

// DefaultMaxDetections 第一阶段最多保留的目标数
const DefaultMaxDetections = 20

// 调用阶段
const (
	StageDetect = "detect"
	StageRefine = "refine"
)

// ErrRefineUnparsable 第二阶段输出中没有可用的物种
var ErrRefineUnparsable = errors.New("细化结果无法解析")

// VisionModel 接收图片和提示词、返回文本的视觉模型
type VisionModel interface {
	Generate(ctx context.Context, prompt string, image []byte, mimeType string) (string, error)
}

// RefinedDetection 两阶段识别后的单个目标
type RefinedDetection struct {
	Index           int              `json:"index"`
	Label           string           `json:"label,omitempty"`
	Family          string           `json:"family,omitempty"`
	Genus           string           `json:"genus,omitempty"`
	PossibleSpecies []string         `json:"possibleSpecies,omitempty"`
	FinalSpecies    string           `json:"finalSpecies,omitempty"`
	Confidence      *float64         `json:"confidence,omitempty"`
	Reasoning       string           `json:"reasoning,omitempty"`
	Box             *interpreter.Box `json:"box,omitempty"`
	Refined         bool             `json:"refined"`
	RefineError     string           `json:"refineError,omitempty"`
	DetectionID     string           `json:"detectionId,omitempty"`
}

// PestType 用于入库的害虫名称
func (d *RefinedDetection) PestType() string {
	switch {
	case d.FinalSpecies != "":
		return d.FinalSpecies
	case d.Label != "":
		return d.Label
	case len(d.PossibleSpecies) > 0:
		return d.PossibleSpecies[0]
	case d.Genus != "":
		return d.Genus
	}
	return d.Family
}

// StageDebug 单次模型调用的调试信息
type StageDebug struct {
	Index      int    `json:"index"`
	RawText    string `json:"rawText"`
	Error      string `json:"error,omitempty"`
	DurationMs int64  `json:"durationMs"`
}

// AnalysisDebug 两阶段调用的调试信息
type AnalysisDebug struct {
	Model        string       `json:"model"`
	Detect       StageDebug   `json:"detect"`
	DetectKind   string       `json:"detectKind"`
	Dropped      int          `json:"dropped"`
	Refine       []StageDebug `json:"refine"`
	TotalMs      int64        `json:"totalMs"`
	SavedRecords int          `json:"savedRecords"`
}

// AnalysisResult 两阶段识别结果
type AnalysisResult struct {
	Detections []RefinedDetection `json:"detections"`
	Debug      AnalysisDebug      `json:"debug"`
}

// AnalyzeOptions 识别选项
type AnalyzeOptions struct {
	Save      bool
	UserID    uint
	Latitude  *float64
	Longitude *float64
	ImageURL  string
}

// AnalysisService Gemini 两阶段识别：先定位，再逐个目标细化
type AnalysisService struct {
	vision        VisionModel
	modelName     string
	maxDetections int
	db            *gorm.DB
	metrics       *metrics.Metrics
	logger        *logrus.Logger
}

// NewAnalysisService 创建识别服务，vision 为 nil 表示未配置 Gemini
func NewAnalysisService(vision VisionModel, modelName string, maxDetections int, db *gorm.DB, m *metrics.Metrics, logger *logrus.Logger) *AnalysisService {
	if maxDetections <= 0 {
		maxDetections = DefaultMaxDetections
	}
	return &AnalysisService{
		vision:        vision,
		modelName:     modelName,
		maxDetections: maxDetections,
		db:            db,
		metrics:       m,
		logger:        logger,
	}
}

// Configured 是否可用
func (s *AnalysisService) Configured() bool {
	return s.vision != nil
}

// Analyze 执行两阶段识别。第一阶段失败返回错误；
// 第二阶段的单个失败只影响对应目标，原样返回第一阶段结果
func (s *AnalysisService) Analyze(ctx context.Context, image []byte, mimeType string, opts AnalyzeOptions) (*AnalysisResult, error) {
	if s.vision == nil {
		return nil, ErrProviderNotConfigured
	}

	start := time.Now()
	result := &AnalysisResult{
		Detections: []RefinedDetection{},
		Debug:      AnalysisDebug{Model: s.modelName, Refine: []StageDebug{}},
	}

	detectStart := time.Now()
	text, err := s.vision.Generate(ctx, detectPrompt(s.maxDetections), image, mimeType)
	result.Debug.Detect = StageDebug{RawText: text, DurationMs: time.Since(detectStart).Milliseconds()}
	if err != nil {
		s.metrics.RecordProviderCall(models.ProviderGemini, StageDetect, "error", time.Since(detectStart))
		s.logger.WithFields(logrus.Fields{
			"provider": models.ProviderGemini,
			"model":    s.modelName,
			"stage":    StageDetect,
			"error":    err.Error(),
		}).Error("目标定位调用失败")
		return nil, classifyUpstream(err)
	}

	parsed := interpreter.Interpret(text)
	result.Debug.DetectKind = parsed.Kind.String()
	entries, ok := parsed.Structured()
	if !ok {
		s.metrics.RecordProviderCall(models.ProviderGemini, StageDetect, "unparsed", time.Since(detectStart))
		s.logger.WithFields(logrus.Fields{
			"model": s.modelName,
			"stage": StageDetect,
		}).Warn("目标定位结果不是 JSON")
		result.Debug.TotalMs = time.Since(start).Milliseconds()
		return result, nil
	}
	s.metrics.RecordProviderCall(models.ProviderGemini, StageDetect, "ok", time.Since(detectStart))

	if len(entries) > s.maxDetections {
		result.Debug.Dropped = len(entries) - s.maxDetections
		entries = entries[:s.maxDetections]
	}

	result.Detections, result.Debug.Refine = s.refineAll(ctx, image, mimeType, entries)

	if opts.Save && len(result.Detections) > 0 {
		if err := s.persist(ctx, result.Detections, opts); err != nil {
			s.logger.WithFields(logrus.Fields{
				"model": s.modelName,
				"error": err.Error(),
			}).Error("保存识别结果失败")
			return nil, fmt.Errorf("保存识别结果失败: %w", err)
		}
		result.Debug.SavedRecords = len(result.Detections)
	}

	result.Debug.TotalMs = time.Since(start).Milliseconds()
	return result, nil
}

// refineAll 并发细化所有目标，等待全部完成。单个失败不取消其他调用
func (s *AnalysisService) refineAll(ctx context.Context, image []byte, mimeType string, entries []interpreter.Detection) ([]RefinedDetection, []StageDebug) {
	detections := make([]RefinedDetection, len(entries))
	debug := make([]StageDebug, len(entries))

	var g errgroup.Group
	for i, entry := range entries {
		i, entry := i, entry
		detections[i] = fromStageOne(i, entry)
		g.Go(func() error {
			defer func() {
				if r := recover(); r != nil {
					detections[i].Refined = false
					detections[i].RefineError = fmt.Sprintf("panic: %v", r)
					debug[i].Error = detections[i].RefineError
				}
			}()

			callStart := time.Now()
			text, err := s.vision.Generate(ctx, refinePrompt(entry), image, mimeType)
			debug[i] = StageDebug{Index: i, RawText: text, DurationMs: time.Since(callStart).Milliseconds()}
			if err == nil {
				err = mergeRefinement(&detections[i], text)
			}
			if err != nil {
				s.metrics.RecordProviderCall(models.ProviderGemini, StageRefine, "error", time.Since(callStart))
				s.logger.WithFields(logrus.Fields{
					"provider":  models.ProviderGemini,
					"model":     s.modelName,
					"stage":     StageRefine,
					"detection": i,
					"error":     err.Error(),
				}).Warn("目标细化失败，保留第一阶段结果")
				detections[i].RefineError = err.Error()
				debug[i].Error = err.Error()
				return nil
			}
			s.metrics.RecordProviderCall(models.ProviderGemini, StageRefine, "ok", time.Since(callStart))
			return nil
		})
	}
	_ = g.Wait()

	return detections, debug
}

func fromStageOne(index int, entry interpreter.Detection) RefinedDetection {
	return RefinedDetection{
		Index:           index,
		Label:           entry.Label,
		Family:          entry.Family,
		Genus:           entry.Genus,
		PossibleSpecies: entry.PossibleSpecies,
		FinalSpecies:    entry.Species,
		Confidence:      entry.Confidence,
		Reasoning:       entry.Reasoning,
		Box:             entry.Box,
	}
}

// mergeRefinement 合并第二阶段结果，失败时不修改 det
func mergeRefinement(det *RefinedDetection, text string) error {
	refined, ok := interpreter.Interpret(text).Structured()
	if !ok || len(refined) == 0 || refined[0].Species == "" {
		return ErrRefineUnparsable
	}

	r := refined[0]
	det.FinalSpecies = r.Species
	if r.Confidence != nil {
		det.Confidence = r.Confidence
	}
	if r.Reasoning != "" {
		det.Reasoning = r.Reasoning
	}
	if det.Family == "" {
		det.Family = r.Family
	}
	if det.Genus == "" {
		det.Genus = r.Genus
	}
	det.Refined = true
	return nil
}

// persist 所有目标在同一事务中入库，状态为待审核
func (s *AnalysisService) persist(ctx context.Context, detections []RefinedDetection, opts AnalyzeOptions) error {
	now := time.Now().UTC()
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := repository.NewDetectionRepository(tx)
		for i := range detections {
			det := &detections[i]

			candidates, err := jsonColumn(det.PossibleSpecies)
			if err != nil {
				return err
			}
			var box []float64
			if det.Box != nil {
				box = []float64{det.Box.X1, det.Box.Y1, det.Box.X2, det.Box.Y2}
			}
			boxJSON, err := jsonColumn(box)
			if err != nil {
				return err
			}

			confidence := 0.0
			if det.Confidence != nil {
				confidence = *det.Confidence
			}
			record := &models.Detection{
				ID:            uuid.NewString(),
				Confidence:    confidence,
				CurVeriStatus: models.StatusPending,
				InputImageURL: opts.ImageURL,
				PestType:      det.PestType(),
				Timestamp:     now,
				UserID:        opts.UserID,
				Provider:      models.ProviderGemini,
				Model:         s.modelName,
			}
			metadata := &models.DetectionMetadata{
				UserLatitude:     opts.Latitude,
				UserLongitude:    opts.Longitude,
				ScientificName:   det.FinalSpecies,
				Family:           det.Family,
				Genus:            det.Genus,
				Reasoning:        det.Reasoning,
				CandidateSpecies: candidates,
				Box:              boxJSON,
			}
			if err := repo.Create(record, metadata); err != nil {
				return err
			}
			det.DetectionID = record.ID
		}
		return nil
	})
}
