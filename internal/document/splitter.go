package document

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Splitter 文本分段器接口
// 负责将文档切分为有长度上限的文本块
type Splitter interface {
	// Split 按文档顺序切分，返回所有文本块
	Split(docs []Document) ([]Chunk, error)
}

// SplitterConfig 分段器配置
// 长度均按字符(rune)计算
type SplitterConfig struct {
	ChunkSize       int    // 分块大小
	ChunkOverlap    int    // 相邻分块重叠大小
	Separator       string // 原子单元分隔符，为空时按单个字符切分
	KeepSeparator   bool   // 保留分隔符，附加在后一个单元开头
	StripWhitespace bool   // 去除块首尾空白并丢弃空块
}

// DefaultSplitterConfig 返回默认分段器配置
func DefaultSplitterConfig() SplitterConfig {
	return SplitterConfig{
		ChunkSize:    200,
		ChunkOverlap: 0,
		Separator:    "",
	}
}

// Validate 检查配置是否合法
func (c SplitterConfig) Validate() error {
	if c.ChunkSize <= 0 {
		return &ConfigError{Field: "chunk_size", Reason: fmt.Sprintf("must be positive, got %d", c.ChunkSize)}
	}
	if c.ChunkOverlap < 0 {
		return &ConfigError{Field: "chunk_overlap", Reason: fmt.Sprintf("must not be negative, got %d", c.ChunkOverlap)}
	}
	if c.ChunkOverlap >= c.ChunkSize {
		return &ConfigError{
			Field:  "chunk_overlap",
			Reason: fmt.Sprintf("(%d) must be smaller than chunk_size (%d)", c.ChunkOverlap, c.ChunkSize),
		}
	}
	return nil
}

// CharacterSplitter 基于分隔符的定长字符分段器
type CharacterSplitter struct {
	config SplitterConfig
	logger *logrus.Logger
}

// SplitterOption 分段器配置选项
type SplitterOption func(*CharacterSplitter)

// WithSplitterLogger 设置日志记录器
func WithSplitterLogger(logger *logrus.Logger) SplitterOption {
	return func(s *CharacterSplitter) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewCharacterSplitter 创建新的字符分段器，配置无效时返回ErrInvalidConfig
func NewCharacterSplitter(config SplitterConfig, opts ...SplitterOption) (*CharacterSplitter, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	s := &CharacterSplitter{
		config: config,
		logger: logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Config 返回分段器配置
func (s *CharacterSplitter) Config() SplitterConfig {
	return s.config
}

// Split 切分文档序列
// 结果先按文档顺序、再按块在文档内的顺序排列，每个块携带来源文档元数据的副本
func (s *CharacterSplitter) Split(docs []Document) ([]Chunk, error) {
	if err := s.config.Validate(); err != nil {
		return nil, err
	}

	chunks := make([]Chunk, 0, len(docs))
	for i, doc := range docs {
		if !utf8.ValidString(doc.Content) {
			return nil, fmt.Errorf("%w: document %d (%s) is not valid UTF-8 text",
				ErrInvalidContent, i, doc.Metadata[MetaSource])
		}

		for j, p := range s.splitPieces(doc.Content) {
			chunks = append(chunks, Chunk{
				ID:         uuid.NewString(),
				Text:       p.text,
				Metadata:   copyMetadata(doc.Metadata),
				Index:      j,
				StartIndex: p.start,
			})
		}
	}

	return chunks, nil
}

// SplitText 切分单个字符串
func (s *CharacterSplitter) SplitText(text string) ([]string, error) {
	if err := s.config.Validate(); err != nil {
		return nil, err
	}
	if !utf8.ValidString(text) {
		return nil, fmt.Errorf("%w: text is not valid UTF-8", ErrInvalidContent)
	}

	pieces := s.splitPieces(text)
	result := make([]string, 0, len(pieces))
	for _, p := range pieces {
		result = append(result, p.text)
	}
	return result, nil
}

// unit 原子单元
type unit struct {
	text  string
	start int // 字符偏移
	size  int // 字符数
}

// piece 合并后的块
type piece struct {
	text  string
	start int
}

// splitUnits 按分隔符把文本拆成原子单元，空单元被丢弃
func (s *CharacterSplitter) splitUnits(text string) []unit {
	sep := s.config.Separator

	if sep == "" {
		units := make([]unit, 0, utf8.RuneCountInString(text))
		offset := 0
		for _, r := range text {
			units = append(units, unit{text: string(r), start: offset, size: 1})
			offset++
		}
		return units
	}

	var units []unit
	sepSize := utf8.RuneCountInString(sep)
	offset := 0
	first := true
	for {
		idx := strings.Index(text, sep)
		var part string
		if idx < 0 {
			part = text
		} else {
			part = text[:idx]
		}

		partSize := utf8.RuneCountInString(part)
		u := unit{text: part, start: offset, size: partSize}
		if s.config.KeepSeparator && !first {
			u = unit{text: sep + part, start: offset - sepSize, size: partSize + sepSize}
		}
		if u.text != "" {
			units = append(units, u)
		}

		if idx < 0 {
			break
		}
		offset += partSize + sepSize
		text = text[idx+len(sep):]
		first = false
	}
	return units
}

// joiner 合并单元时使用的连接符
func (s *CharacterSplitter) joiner() string {
	if s.config.KeepSeparator {
		return ""
	}
	return s.config.Separator
}

// splitPieces 贪心累积原子单元
// 加入下一个单元会超过ChunkSize时输出当前窗口，再从窗口头部丢弃单元，
// 直到剩余长度不超过ChunkOverlap且下一个单元能放下
func (s *CharacterSplitter) splitPieces(text string) []piece {
	units := s.splitUnits(text)
	if len(units) == 0 {
		return nil
	}

	joiner := s.joiner()
	sepLen := utf8.RuneCountInString(joiner)
	size := s.config.ChunkSize
	overlap := s.config.ChunkOverlap

	var (
		pieces []piece
		window []unit
		total  int
	)

	sepIfAny := func() int {
		if len(window) > 0 {
			return sepLen
		}
		return 0
	}

	for _, u := range units {
		if total+u.size+sepIfAny() > size && len(window) > 0 {
			if p, ok := s.emit(window, joiner, total); ok {
				pieces = append(pieces, p)
			}
			for total > overlap || (total > 0 && total+u.size+sepIfAny() > size) {
				total -= window[0].size
				if len(window) > 1 {
					total -= sepLen
				}
				window = window[1:]
			}
		}
		total += u.size + sepIfAny()
		window = append(window, u)
	}

	if p, ok := s.emit(window, joiner, total); ok {
		pieces = append(pieces, p)
	}
	return pieces
}

// emit 把窗口内的单元拼接为一个块
func (s *CharacterSplitter) emit(window []unit, joiner string, total int) (piece, bool) {
	if len(window) == 0 {
		return piece{}, false
	}
	if total > s.config.ChunkSize {
		s.logger.WithFields(logrus.Fields{
			"chunk_size": s.config.ChunkSize,
			"created":    total,
		}).Warn("Created a chunk longer than the configured chunk size")
	}

	parts := make([]string, len(window))
	for i, u := range window {
		parts[i] = u.text
	}
	p := piece{text: strings.Join(parts, joiner), start: window[0].start}

	if s.config.StripWhitespace {
		trimmedLeft := strings.TrimLeftFunc(p.text, unicode.IsSpace)
		p.start += utf8.RuneCountInString(p.text) - utf8.RuneCountInString(trimmedLeft)
		p.text = strings.TrimRightFunc(trimmedLeft, unicode.IsSpace)
		if p.text == "" {
			return piece{}, false
		}
	}
	return p, true
}
