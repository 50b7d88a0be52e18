package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"pestid/internal/dto"
	"pestid/internal/models"
	"pestid/internal/repository"
	"pestid/pkg/gbif"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

// gbifConcurrency 聚合时同时进行的 GBIF 查询数
const gbifConcurrency = 4

// unknownTaxon 分类未知时的占位名
const unknownTaxon = "Unknown"

// Taxonomy GBIF 查询
type Taxonomy interface {
	Match(ctx context.Context, name string) (*gbif.MatchResult, error)
	Search(ctx context.Context, query string, limit int) (*gbif.SearchResult, error)
	Get(ctx context.Context, key int64) (*gbif.NameUsage, error)
}

// AggregateReport 聚合结果
type AggregateReport struct {
	Species    int   `json:"species"`
	Detections int   `json:"detections"`
	Enriched   int   `json:"enriched"`
	Failed     int   `json:"failed"`
	DurationMs int64 `json:"durationMs"`
}

// TaxonNode 分类树节点
type TaxonNode struct {
	Name          string       `json:"name"`
	Rank          string       `json:"rank"`
	SpeciesCount  int          `json:"speciesCount"`
	InstanceCount int64        `json:"instanceCount"`
	Children      []*TaxonNode `json:"children,omitempty"`
	Species       []string     `json:"species,omitempty"`
}

// SpeciesService 物种汇总与分类树
type SpeciesService struct {
	db          *gorm.DB
	speciesRepo *repository.SpeciesRepository
	taxonomy    Taxonomy
	logger      *logrus.Logger
	mu          sync.Mutex
}

// NewSpeciesService 创建物种服务，taxonomy 为 nil 时不做分类补全
func NewSpeciesService(db *gorm.DB, taxonomy Taxonomy, logger *logrus.Logger) *SpeciesService {
	return &SpeciesService{
		db:          db,
		speciesRepo: repository.NewSpeciesRepository(db),
		taxonomy:    taxonomy,
		logger:      logger,
	}
}

// Aggregate 由检测结果重建物种表。按学名分组，没有学名时用害虫类型；
// GBIF 补全分类失败只记录日志
func (s *SpeciesService) Aggregate(ctx context.Context) (*AggregateReport, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	start := time.Now()
	rows, err := repository.NewDetectionRepository(s.db.WithContext(ctx)).SpeciesSource()
	if err != nil {
		return nil, fmt.Errorf("读取检测数据失败: %w", err)
	}

	species := groupSpecies(rows)
	report := &AggregateReport{Species: len(species), Detections: len(rows)}

	if s.taxonomy != nil && len(species) > 0 {
		report.Enriched, report.Failed = s.enrich(ctx, species)
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return repository.NewSpeciesRepository(tx).ReplaceAll(species)
	})
	if err != nil {
		return nil, fmt.Errorf("写入物种数据失败: %w", err)
	}

	report.DurationMs = time.Since(start).Milliseconds()
	s.logger.WithFields(logrus.Fields{
		"species":    report.Species,
		"detections": report.Detections,
		"enriched":   report.Enriched,
		"failed":     report.Failed,
	}).Info("物种聚合完成")
	return report, nil
}

func groupSpecies(rows []repository.SpeciesSourceRow) []models.Species {
	type group struct {
		species models.Species
		images  map[string]struct{}
	}

	groups := make(map[string]*group)
	var order []string
	for _, row := range rows {
		name := strings.TrimSpace(row.ScientificName)
		if name == "" {
			name = strings.TrimSpace(row.PestType)
		}
		if name == "" {
			continue
		}

		g, ok := groups[name]
		if !ok {
			g = &group{
				species: models.Species{ScientificName: name},
				images:  make(map[string]struct{}),
			}
			groups[name] = g
			order = append(order, name)
		}

		g.species.InstanceCount++
		if row.InputImageURL != "" {
			g.images[row.InputImageURL] = struct{}{}
		}
		if row.Timestamp.After(g.species.LastSeen) {
			g.species.LastSeen = row.Timestamp.UTC()
		}
		if g.species.Family == "" {
			g.species.Family = row.Family
		}
		if g.species.Genus == "" {
			g.species.Genus = row.Genus
		}
		if g.species.CommonName == "" && row.PestType != "" && row.PestType != name {
			g.species.CommonName = row.PestType
		}
	}

	species := make([]models.Species, 0, len(order))
	for _, name := range order {
		g := groups[name]
		g.species.ImageCount = int64(len(g.images))
		species = append(species, g.species)
	}
	return species
}

// enrich 并发查询 GBIF，限制并发数，单个失败不影响其他
func (s *SpeciesService) enrich(ctx context.Context, species []models.Species) (enriched, failed int) {
	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(gbifConcurrency)

	for i := range species {
		sp := &species[i]
		g.Go(func() error {
			match, err := s.taxonomy.Match(gctx, sp.ScientificName)
			if err != nil || !match.Matched() {
				mu.Lock()
				failed++
				mu.Unlock()
				fields := logrus.Fields{"species": sp.ScientificName}
				if err != nil {
					fields["error"] = err.Error()
				}
				s.logger.WithFields(fields).Warn("GBIF 未匹配到物种")
				return nil
			}

			sp.GBIFKey = match.UsageKey
			sp.Rank = strings.ToLower(match.Rank)
			if match.Order != "" {
				sp.Order = match.Order
			}
			if match.Family != "" {
				sp.Family = match.Family
			}
			if match.Genus != "" {
				sp.Genus = match.Genus
			}
			mu.Lock()
			enriched++
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return enriched, failed
}

// List 游标分页
func (s *SpeciesService) List(query *dto.CursorQuery) (repository.Page[models.Species], error) {
	cursor, err := repository.DecodeCursor(query.Cursor)
	if err != nil {
		return repository.Page[models.Species]{}, err
	}
	page, err := s.speciesRepo.List(cursor, query.Limit)
	if err != nil {
		return page, fmt.Errorf("查询物种失败: %w", err)
	}
	return page, nil
}

// Tree 目 -> 科 -> 属 分类树
func (s *SpeciesService) Tree() ([]*TaxonNode, error) {
	species, err := s.speciesRepo.All()
	if err != nil {
		return nil, fmt.Errorf("查询物种失败: %w", err)
	}
	return buildTree(species), nil
}

func buildTree(species []models.Species) []*TaxonNode {
	roots := []*TaxonNode{}
	index := make(map[string]*TaxonNode)

	child := func(parent *TaxonNode, key, name, rank string) *TaxonNode {
		if node, ok := index[key]; ok {
			return node
		}
		node := &TaxonNode{Name: name, Rank: rank}
		index[key] = node
		if parent == nil {
			roots = append(roots, node)
		} else {
			parent.Children = append(parent.Children, node)
		}
		return node
	}

	for _, sp := range species {
		orderName := orUnknown(sp.Order)
		familyName := orUnknown(sp.Family)
		genusName := orUnknown(sp.Genus)

		orderNode := child(nil, orderName, orderName, "order")
		familyNode := child(orderNode, orderName+"/"+familyName, familyName, "family")
		genusNode := child(familyNode, orderName+"/"+familyName+"/"+genusName, genusName, "genus")

		for _, node := range []*TaxonNode{orderNode, familyNode, genusNode} {
			node.SpeciesCount++
			node.InstanceCount += sp.InstanceCount
		}
		genusNode.Species = append(genusNode.Species, sp.ScientificName)
	}

	sortNodes(roots)
	return roots
}

func sortNodes(nodes []*TaxonNode) {
	sort.Slice(nodes, func(i, j int) bool {
		if nodes[i].InstanceCount != nodes[j].InstanceCount {
			return nodes[i].InstanceCount > nodes[j].InstanceCount
		}
		return nodes[i].Name < nodes[j].Name
	})
	for _, n := range nodes {
		sortNodes(n.Children)
	}
}

func orUnknown(s string) string {
	if strings.TrimSpace(s) == "" {
		return unknownTaxon
	}
	return s
}

// SearchGBIF 透传 GBIF 搜索
func (s *SpeciesService) SearchGBIF(ctx context.Context, q string, limit int) (*gbif.SearchResult, error) {
	if s.taxonomy == nil {
		return nil, ErrProviderNotConfigured
	}
	result, err := s.taxonomy.Search(ctx, q, limit)
	if err != nil {
		return nil, classifyUpstream(err)
	}
	return result, nil
}

// MatchGBIF 透传 GBIF 名称匹配
func (s *SpeciesService) MatchGBIF(ctx context.Context, name string) (*gbif.MatchResult, error) {
	if s.taxonomy == nil {
		return nil, ErrProviderNotConfigured
	}
	result, err := s.taxonomy.Match(ctx, name)
	if err != nil {
		return nil, classifyUpstream(err)
	}
	return result, nil
}

// GetGBIF 按 key 获取 GBIF 条目，不存在返回 gbif.ErrNotFound
func (s *SpeciesService) GetGBIF(ctx context.Context, key int64) (*gbif.NameUsage, error) {
	if s.taxonomy == nil {
		return nil, ErrProviderNotConfigured
	}
	usage, err := s.taxonomy.Get(ctx, key)
	if err != nil {
		if errors.Is(err, gbif.ErrNotFound) {
			return nil, err
		}
		return nil, classifyUpstream(err)
	}
	return usage, nil
}
