package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"pipeline-acceptance/internal/domain"
	"pipeline-acceptance/internal/engagement"
	"pipeline-acceptance/internal/storage"
	"pipeline-acceptance/internal/urlpath"
)

// ErrViolations is returned when the output tree fails validation.
var ErrViolations = errors.New("engagement reports failed validation")

type validateOptions struct {
	intervals []string
	courses   []string
}

type validateReport struct {
	Root        string                    `json:"root"`
	Passed      bool                      `json:"passed"`
	Files       int                       `json:"files"`
	FailedRules []string                  `json:"failed_rules"`
	Courses     []engagement.CourseResult `json:"courses"`
}

func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &validateOptions{}

	cmd := &cobra.Command{
		Use:   "validate <output-root>",
		Short: "Validate student engagement reports under an output root",
		Long: `Validate the student engagement CSV reports a pipeline run wrote under
<output-root>/<interval>/<sha1(course)>/. The root is a local directory or an
s3:// URL.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(cmd, rootOpts, opts, args[0])
		},
	}

	cmd.Flags().StringSliceVar(&opts.intervals, "intervals", nil, "intervals to check (daily,weekly,all)")
	cmd.Flags().StringSliceVar(&opts.courses, "courses", nil, "course ids to check")

	return cmd
}

func runValidate(cmd *cobra.Command, rootOpts *RootOptions, opts *validateOptions, root string) error {
	src := storage.Objects{}
	if urlpath.IsS3(root) {
		store, err := storage.NewMinioStore(rootOpts.MinioEndpoint, rootOpts.MinioAccessKey, rootOpts.MinioSecretKey, rootOpts.MinioUseSSL)
		if err != nil {
			return fmt.Errorf("connect object store: %w", err)
		}
		src.S3 = store
	}

	exp := engagement.DefaultExpectations()
	courses := exp.Courses
	if len(opts.courses) > 0 {
		courses = opts.courses
	}
	intervals := engagement.Intervals
	if len(opts.intervals) > 0 {
		intervals = make([]engagement.Interval, 0, len(opts.intervals))
		for _, v := range opts.intervals {
			interval, err := engagement.ParseInterval(v)
			if err != nil {
				return err
			}
			intervals = append(intervals, interval)
		}
	}

	report := validateReport{Root: root, Courses: make([]engagement.CourseResult, 0)}
	results := make([]domain.ValidationResult, 0)
	for _, interval := range intervals {
		for _, course := range courses {
			res, err := engagement.ValidateCourse(cmd.Context(), src, root, interval, course, exp)
			if err != nil {
				return err
			}
			report.Courses = append(report.Courses, res)
			results = append(results, res.ValidationResult())
		}
	}
	merged := domain.Merge(results...)
	report.Passed = domain.ValidationPassed(merged)
	report.Files = len(merged.Files)
	report.FailedRules = merged.FailedRules()

	if err := writeReport(cmd.OutOrStdout(), rootOpts.Format, report, merged); err != nil {
		return err
	}
	if !report.Passed {
		return fmt.Errorf("%w: %d violations", ErrViolations, len(merged.Violations))
	}
	return nil
}

func writeReport(w io.Writer, format string, report validateReport, merged domain.ValidationResult) error {
	if format == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	}
	for _, v := range merged.Violations {
		fmt.Fprintln(w, v.String())
	}
	status := "PASSED"
	if !report.Passed {
		status = "FAILED"
	}
	_, err := fmt.Fprintf(w, "%s: %d files, %d violations\n", status, report.Files, len(merged.Violations))
	return err
}
