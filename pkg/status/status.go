// Copyright 2025 walteh LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package status gives the operator friendly feedback about the import
// run, mirrored into zerolog for debugging.
package status

import (
	"context"
	"fmt"

	"github.com/fatih/color"
	"github.com/pterm/pterm"
	"github.com/rs/zerolog"
)

// 📊 Summary aggregates what one run did (or, in a dry run, would do).
type Summary struct {
	Feeds           int
	Topics          int
	Replies         int
	AccountsCreated int
	Uploads         int
	UploadedBytes   int64
	DryRun          bool
}

// 📢 Reporter prints phase transitions and the final summary.
type Reporter struct {
	log zerolog.Logger
}

// 🎯 NewReporter creates a reporter bound to the context's logger.
func NewReporter(ctx context.Context) *Reporter {
	return &Reporter{log: *zerolog.Ctx(ctx)}
}

// 📝 Phase announces the start of an import phase. A nil reporter
// reports nothing, so embedders can leave it out.
func (r *Reporter) Phase(name string) {
	if r == nil {
		return
	}
	pterm.Info.WithPrefix(pterm.Prefix{Text: "▶️"}).Println(name)
	r.log.Info().Msg(name)
}

// ⚠️ Warn surfaces a non-fatal condition to the operator.
func (r *Reporter) Warn(msg string) {
	if r == nil {
		return
	}
	pterm.Warning.Println(msg)
	r.log.Warn().Msg(msg)
}

// ✅ Done prints the final run summary.
func (r *Reporter) Done(s Summary) {
	if r == nil {
		return
	}
	header := "Import complete"
	if s.DryRun {
		header = "Dry run complete (nothing written)"
	}
	pterm.Success.Println(header)

	bold := color.New(color.Bold).SprintFunc()
	fmt.Printf("  %s topics, %s replies from %s feed file(s)\n",
		bold(s.Topics), bold(s.Replies), bold(s.Feeds))
	fmt.Printf("  %s accounts created, %s files uploaded (%s)\n",
		bold(s.AccountsCreated), bold(s.Uploads), bold(formatBytes(s.UploadedBytes)))

	r.log.Info().
		Int("feeds", s.Feeds).
		Int("topics", s.Topics).
		Int("replies", s.Replies).
		Int("accounts_created", s.AccountsCreated).
		Int("uploads", s.Uploads).
		Int64("uploaded_bytes", s.UploadedBytes).
		Bool("dry_run", s.DryRun).
		Msg(header)
}

// formatBytes renders a byte count with a binary unit suffix.
func formatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
