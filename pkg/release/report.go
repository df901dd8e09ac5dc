package release

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"apk_release/pkg/models"

	"gopkg.in/yaml.v3"
)

// 报告输出格式
const (
	FormatNone = ""
	FormatText = "text"
	FormatJSON = "json"
	FormatYAML = "yaml"
)

// ValidFormat 检查报告格式是否受支持
func ValidFormat(format string) bool {
	switch format {
	case FormatNone, FormatText, FormatJSON, FormatYAML:
		return true
	}
	return false
}

// WriteReport 以指定格式输出运行报告
func WriteReport(w io.Writer, report *models.RunReport, format string) error {
	switch format {
	case FormatNone:
		return nil
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(report); err != nil {
			return err
		}
		return enc.Close()
	case FormatText:
		return writeText(w, report)
	default:
		return fmt.Errorf("unknown report format %q", format)
	}
}

func writeText(w io.Writer, report *models.RunReport) error {
	fmt.Fprintf(w, "Run:      %s\n", report.RunID)
	fmt.Fprintf(w, "Artifact: %s\n", report.Artifact.FileName())
	fmt.Fprintf(w, "Devices:  %v\n", report.Devices)

	if len(report.Results) == 0 {
		_, err := fmt.Fprintln(w, "No device operations performed")
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ACTION\tDEVICE\tSTATUS\tEXIT\tDURATION")
	for _, r := range report.Results {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%v\n", r.Action, r.DeviceID, r.Status, r.ExitCode, r.Duration)
	}
	return tw.Flush()
}
