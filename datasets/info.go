package datasets

import (
	"fmt"
	"strings"

	"github.com/Noofbiz/ppmlDatasets/imageops"
	"github.com/Noofbiz/ppmlDatasets/stats"
	"github.com/charmbracelet/lipgloss"
	lgtable "github.com/charmbracelet/lipgloss/table"
	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// Info describes a loaded dataset.
type Info struct {
	Name              string         `json:"name"`
	DatasetImageShape imageops.Shape `json:"dataset_img_shape"`
	ModelImageShape   imageops.Shape `json:"model_img_shape"`

	TotalCount int `json:"total_count"`
	TrainCount int `json:"train_count"`
	ValCount   int `json:"val_count"`
	TestCount  int `json:"test_count"`

	Classes int `json:"classes"`

	// ClassImbalance is nil when undefined, i.e. for fewer than 2 classes.
	ClassImbalance *float64             `json:"class_imbalance"`
	ClassWeights   []ClassWeight        `json:"class_weights"`
	Entropy        stats.EntropySummary `json:"entropy"`
}

// BuildInfo computes the Info record of the current partitions, which needs
// a full traversal of the train partition, and keeps it as Session.Info.
func (s *Session) BuildInfo() (*Info, error) {
	counts, err := s.DatasetCount()
	if err != nil {
		return nil, errors.WithMessage(err, "building dataset info")
	}
	weights, err := s.ClassWeights()
	if err != nil {
		return nil, errors.WithMessage(err, "building dataset info")
	}
	info := &Info{
		Name:              s.cfg.Name,
		DatasetImageShape: s.cfg.DatasetImageShape,
		ModelImageShape:   s.cfg.ImageShape,
		TotalCount:        counts.Total(),
		TrainCount:        counts.Train,
		ValCount:          counts.Validation,
		TestCount:         counts.Test,
		Classes:           len(weights),
		ClassWeights:      weights,
	}
	imbalance, err := s.ClassImbalance()
	switch {
	case err == nil:
		info.ClassImbalance = &imbalance
	case errors.Is(err, stats.ErrDegenerate):
		klog.Warningf("%s: class imbalance undefined: %v", s.cfg.Name, err)
	default:
		return nil, errors.WithMessage(err, "building dataset info")
	}
	if info.Entropy, err = s.DataEntropy(nil); err != nil {
		return nil, errors.WithMessage(err, "building dataset info")
	}
	s.info = info
	return info, nil
}

var (
	headerRowStyle = lipgloss.NewStyle().Reverse(true).
			Padding(0, 2, 0, 2).Align(lipgloss.Center)

	oddRowStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#FFF")).
			PaddingLeft(1).PaddingRight(1)
	evenRowStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#999")).
			PaddingLeft(1).PaddingRight(1)

	titleStyle = lipgloss.NewStyle().Bold(true).Padding(1, 4, 0, 4)
)

func newTable(withHeader bool) *lgtable.Table {
	return lgtable.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(lipgloss.Color("99"))).
		StyleFunc(func(row, col int) (s lipgloss.Style) {
			if withHeader && row == lgtable.HeaderRow {
				return headerRowStyle
			}
			if row%2 == 0 {
				s = oddRowStyle
			} else {
				s = evenRowStyle
			}
			if col == 0 {
				return s.Align(lipgloss.Right)
			}
			return s.Align(lipgloss.Left)
		})
}

func formatShape(s imageops.Shape) string {
	if s.IsZero() {
		return "-"
	}
	return s.String()
}

// String renders the record as tables.
func (info *Info) String() string {
	var sb strings.Builder
	sb.WriteString(titleStyle.Render("Dataset " + info.Name))
	sb.WriteString("\n")

	summary := newTable(false)
	summary.Row("dataset image shape", formatShape(info.DatasetImageShape))
	summary.Row("model image shape", formatShape(info.ModelImageShape))
	summary.Row("total", humanize.Comma(int64(info.TotalCount)))
	summary.Row("train", humanize.Comma(int64(info.TrainCount)))
	summary.Row("val", humanize.Comma(int64(info.ValCount)))
	summary.Row("test", humanize.Comma(int64(info.TestCount)))
	summary.Row("classes", humanize.Comma(int64(info.Classes)))
	imbalance := "undefined"
	if info.ClassImbalance != nil {
		imbalance = fmt.Sprintf("%.4f", *info.ClassImbalance)
	}
	summary.Row("class imbalance", imbalance)
	e := info.Entropy
	summary.Row("entropy avg/min/max", fmt.Sprintf("%.4f / %.4f / %.4f", e.Raw.Avg, e.Raw.Min, e.Raw.Max))
	summary.Row("normed entropy avg/min/max",
		fmt.Sprintf("%.4f / %.4f / %.4f", e.Normalized.Avg, e.Normalized.Min, e.Normalized.Max))
	summary.Row("constant samples", humanize.Comma(int64(e.ConstantSamples)))
	sb.WriteString(summary.Render())
	sb.WriteString("\n")

	if len(info.ClassWeights) > 0 {
		classes := newTable(true)
		classes.Headers("Class", "Count", "Weight")
		for _, w := range info.ClassWeights {
			classes.Row(w.Key, humanize.Comma(int64(w.Count)), fmt.Sprintf("%.4f", w.Weight))
		}
		sb.WriteString(classes.Render())
		sb.WriteString("\n")
	}
	return sb.String()
}
