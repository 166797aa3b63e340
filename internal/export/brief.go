/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package export

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/jung-kurt/gofpdf"

	"artdao/internal/domain"
)

// BriefOptions controls the proposal brief.
// Units are points. The page is A4 unless PageSize is set.
type BriefOptions struct {
	PageSize gofpdf.SizeType
	Margin   float64
	// Image is the raw proposal image (PNG, JPEG, GIF or WebP). Nil skips it.
	Image []byte
	// Author overrides the PDF author metadata.
	Author string
}

// ProposalBrief renders a one-page PDF summary of p to outPath.
func ProposalBrief(p domain.Proposal, outPath string, opt BriefOptions) error {
	if strings.TrimSpace(p.Title) == "" {
		return fmt.Errorf("proposal %d has no title", p.ID)
	}
	size := opt.PageSize
	if size.Wd == 0 || size.Ht == 0 {
		size = gofpdf.SizeType{Wd: 595, Ht: 842}
	}
	margin := opt.Margin
	if margin <= 0 {
		margin = 48
	}
	author := opt.Author
	if author == "" {
		author = "ArtDAO"
	}

	pdf := gofpdf.NewCustom(&gofpdf.InitType{UnitStr: "pt", Size: size})
	pdf.SetTitle(p.Title, true)
	pdf.SetAuthor(author, true)
	pdf.SetMargins(margin, margin, margin)
	pdf.SetAutoPageBreak(true, margin)
	pdf.AddPage()
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	contentW := size.Wd - 2*margin

	pdf.SetFont("Helvetica", "B", 22)
	pdf.MultiCell(contentW, 26, tr(p.Title), "", "L", false)
	pdf.Ln(4)

	pdf.SetFont("Helvetica", "", 10)
	pdf.SetTextColor(90, 90, 90)
	for _, row := range briefMeta(p) {
		pdf.CellFormat(90, 14, row[0], "", 0, "L", false, 0, "")
		pdf.CellFormat(contentW-90, 14, tr(row[1]), "", 1, "L", false, 0, "")
	}
	pdf.SetTextColor(0, 0, 0)
	pdf.SetDrawColor(200, 200, 200)
	pdf.SetLineWidth(0.5)
	y := pdf.GetY() + 6
	pdf.Line(margin, y, size.Wd-margin, y)
	pdf.SetY(y + 10)

	if len(opt.Image) > 0 {
		if err := placeImage(pdf, opt.Image, margin, contentW, size.Ht/2.5); err != nil {
			return err
		}
	}

	if desc := strings.TrimSpace(p.Description); desc != "" {
		pdf.SetFont("Helvetica", "", 12)
		pdf.MultiCell(contentW, 16, tr(desc), "", "L", false)
	}

	if err := pdf.Error(); err != nil {
		return fmt.Errorf("render pdf: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return fmt.Errorf("ensure out dir: %w", err)
	}
	if err := pdf.OutputFileAndClose(outPath); err != nil {
		return fmt.Errorf("write pdf: %w", err)
	}
	return nil
}

func briefMeta(p domain.Proposal) [][2]string {
	rows := [][2]string{
		{"Proposal", fmt.Sprintf("#%d", p.ID)},
		{"Status", string(p.Status)},
		{"Style", p.Style},
		{"Author", p.WalletAddress},
	}
	if !p.CreatedAt.IsZero() {
		rows = append(rows, [2]string{"Created", p.CreatedAt.UTC().Format("2006-01-02 15:04 MST")})
	}
	out := rows[:0]
	for _, r := range rows {
		if r[1] != "" {
			out = append(out, r)
		}
	}
	return out
}

// placeImage fits the image into contentW x maxH below the current position.
func placeImage(pdf *gofpdf.Fpdf, data []byte, x, contentW, maxH float64) error {
	raw, typ, cfg, err := pdfImage(data)
	if err != nil {
		return err
	}
	if cfg.Width == 0 || cfg.Height == 0 {
		return fmt.Errorf("%w: empty image", ErrUnsupportedImage)
	}
	name := fmt.Sprintf("proposal-image-%d", len(raw))
	pdf.RegisterImageOptionsReader(name, gofpdf.ImageOptions{ImageType: typ}, bytes.NewReader(raw))
	w := contentW
	h := w * float64(cfg.Height) / float64(cfg.Width)
	if h > maxH {
		h = maxH
		w = h * float64(cfg.Width) / float64(cfg.Height)
	}
	y := pdf.GetY()
	pdf.ImageOptions(name, x+(contentW-w)/2, y, w, h, false, gofpdf.ImageOptions{ImageType: typ}, 0, "")
	pdf.SetY(y + h + 12)
	return pdf.Error()
}
