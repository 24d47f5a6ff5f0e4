// Package render lays out final page records on a new branded document.
package render

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-pdf/fpdf"

	"github.com/Lllllllleong/pdfrebrand/internal/contact"
	"github.com/Lllllllleong/pdfrebrand/internal/models"
)

// Optional branding assets looked up in Config.AssetsDir.
const (
	AssetCornerLeft  = "corner-left.png"
	AssetCornerRight = "corner-right.png"
	AssetLogo        = "logo.png"
	AssetFooterLogo  = "footer-logo.png"
)

// Page geometry in points.
const (
	backgroundGray = 217

	margin       = 50.0
	contentTop   = 140.0
	footerHeight = 110.0

	titleSize       = 20.0
	titleLineHeight = 24.0
	bodySize        = 11.0
	bodyLineHeight  = 14.5
	contactSize     = 9.0
	brandNameSize   = 10.0
	brandSize       = 8.0

	cornerSize     = 70.0
	logoWidth      = 140.0
	footerLogoSize = 36.0
)

// Branding is the static text block drawn in every footer.
type Branding struct {
	Name    string
	Tagline string
	Website string
}

// Config configures the Renderer.
type Config struct {
	AssetsDir string
	Branding  Branding
}

// Renderer draws FinalPageRecords onto A4 pages.
type Renderer struct {
	config Config
	logger *slog.Logger
}

// NewRenderer creates a Renderer.
func NewRenderer(config Config, logger *slog.Logger) *Renderer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Renderer{config: config, logger: logger.With("component", "renderer")}
}

// page is the drawing state for one document.
type page struct {
	doc    *fpdf.Fpdf
	tr     func(string) string
	assets map[string]bool
	logger *slog.Logger
	width  float64
	height float64
}

// Render produces one page per record, in order. Per-page drawing problems
// are logged and the page is kept with whatever was drawn; an error is
// returned only when no document can be produced.
func (r *Renderer) Render(ctx context.Context, records []models.FinalPageRecord) ([]byte, error) {
	if len(records) == 0 {
		return nil, models.RenderError("no pages to render", nil)
	}

	doc := fpdf.New("P", "pt", "A4", "")
	doc.SetAutoPageBreak(false, 0)
	doc.SetMargins(margin, margin, margin)
	doc.SetCreator("pdfrebrand", true)
	if records[0].Title != "" {
		doc.SetTitle(records[0].Title, true)
	}

	w, h := doc.GetPageSize()
	p := &page{
		doc:    doc,
		tr:     doc.UnicodeTranslatorFromDescriptor(""),
		logger: r.logger,
		width:  w,
		height: h,
	}
	p.assets = r.registerAssets(doc)

	for i, rec := range records {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		doc.AddPage()
		if doc.Err() {
			return nil, models.RenderError("failed to allocate page", doc.Error())
		}
		p.drawPage(rec, r.config.Branding)
		if doc.Err() {
			r.logger.Warn("Page rendered with errors", "page", i+1,
				"error", models.NewStageError(models.StageRender, models.ErrRender, fmt.Sprintf("page %d", i+1), doc.Error()))
			doc.ClearError()
		}
	}

	var buf bytes.Buffer
	if err := doc.Output(&buf); err != nil {
		return nil, models.RenderError("failed to write document", err)
	}
	r.logger.Info("Rendered document", "pages", len(records), "bytes", buf.Len())
	return buf.Bytes(), nil
}

// registerAssets loads the branding images that exist and decode. A
// missing or broken asset is left out.
func (r *Renderer) registerAssets(doc *fpdf.Fpdf) map[string]bool {
	registered := map[string]bool{}
	if r.config.AssetsDir == "" {
		return registered
	}
	for _, name := range []string{AssetCornerLeft, AssetCornerRight, AssetLogo, AssetFooterLogo} {
		path := filepath.Join(r.config.AssetsDir, name)
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				r.logger.Warn("Branding asset unreadable", "asset", path, "error", err)
			}
			continue
		}
		_, format, err := image.DecodeConfig(bytes.NewReader(data))
		if err != nil {
			r.logger.Warn("Branding asset is not an image", "asset", path, "error", err)
			continue
		}
		imageType := map[string]string{"png": "PNG", "jpeg": "JPG", "gif": "GIF"}[format]
		if imageType == "" {
			r.logger.Warn("Branding asset format unsupported", "asset", path, "format", format)
			continue
		}
		doc.RegisterImageOptionsReader(name, fpdf.ImageOptions{ImageType: imageType}, bytes.NewReader(data))
		if doc.Err() {
			r.logger.Warn("Branding asset rejected", "asset", path, "error", doc.Error())
			doc.ClearError()
			continue
		}
		registered[name] = true
	}
	return registered
}

func (p *page) drawPage(rec models.FinalPageRecord, brand Branding) {
	p.drawBackground()
	p.drawHeader()

	y := contentTop
	if rec.Title != "" {
		y = p.drawTitle(rec.Title, y, rec.PageNumber)
	}
	p.drawBody(rec.MainData, y, rec.PageNumber)
	p.drawFooter(rec.ContactInfo, brand)
}

func (p *page) drawBackground() {
	p.doc.SetFillColor(backgroundGray, backgroundGray, backgroundGray)
	p.doc.Rect(0, 0, p.width, p.height, "F")
}

func (p *page) drawHeader() {
	if p.assets[AssetCornerLeft] {
		p.image(AssetCornerLeft, 0, 0, cornerSize, 0)
	}
	if p.assets[AssetCornerRight] {
		p.image(AssetCornerRight, p.width-cornerSize, 0, cornerSize, 0)
	}
	if p.assets[AssetLogo] {
		p.image(AssetLogo, (p.width-logoWidth)/2, 30, logoWidth, 0)
	}
}

func (p *page) image(name string, x, y, w, h float64) {
	p.doc.ImageOptions(name, x, y, w, h, false, fpdf.ImageOptions{}, 0, "")
}

func (p *page) measure(s string) float64 {
	return p.doc.GetStringWidth(p.tr(s))
}

func (p *page) skipWord(pageNum int) func(string) {
	return func(word string) {
		p.logger.Warn("Skipping unencodable word", "page", pageNum, "word", word)
	}
}

// drawTitle draws the wrapped, centered title and returns the next free baseline.
func (p *page) drawTitle(title string, y float64, pageNum int) float64 {
	p.doc.SetFont("Helvetica", "B", titleSize)
	p.doc.SetTextColor(20, 20, 20)
	maxWidth := p.width - 2*margin
	for _, line := range wrapText(title, maxWidth, p.measure, p.skipWord(pageNum)) {
		x := (p.width - p.measure(line)) / 2
		p.doc.Text(x, y, p.tr(line))
		y += titleLineHeight
	}
	return y + bodyLineHeight
}

// drawBody draws wrapped body lines until the footer margin is reached.
func (p *page) drawBody(body string, y float64, pageNum int) {
	p.doc.SetFont("Helvetica", "", bodySize)
	p.doc.SetTextColor(30, 30, 30)
	limit := p.height - footerHeight
	lines := wrapText(body, p.width-2*margin, p.measure, p.skipWord(pageNum))
	for i, line := range lines {
		if y > limit {
			p.logger.Debug("Body truncated at footer", "page", pageNum, "droppedLines", len(lines)-i)
			return
		}
		if line != "" {
			p.doc.Text(margin, y, p.tr(line))
		}
		y += bodyLineHeight
	}
}

func (p *page) drawFooter(contactBlock string, brand Branding) {
	top := p.height - footerHeight + 20

	p.doc.SetDrawColor(90, 90, 90)
	p.doc.SetLineWidth(0.8)
	p.doc.Line(margin, top, p.width-margin, top)

	y := top + 16
	if line := ContactLine(contactBlock); line != "" {
		p.doc.SetFont("Helvetica", "", contactSize)
		p.doc.SetTextColor(30, 30, 30)
		p.centered(line, y)
	}

	y += 16
	if brand.Name != "" {
		p.doc.SetFont("Helvetica", "B", brandNameSize)
		p.centered(brand.Name, y)
		y += 12
	}
	p.doc.SetFont("Helvetica", "", brandSize)
	p.doc.SetTextColor(70, 70, 70)
	for _, s := range []string{brand.Tagline, brand.Website} {
		if s == "" {
			continue
		}
		p.centered(s, y)
		y += 10
	}

	if p.assets[AssetFooterLogo] {
		p.image(AssetFooterLogo, p.width-margin-footerLogoSize, top+8, footerLogoSize, 0)
	}
}

// centered draws a single sanitized line, clipped to the page width.
func (p *page) centered(s string, y float64) {
	s = strings.TrimSpace(Sanitize(strings.ReplaceAll(s, "\n", " ")))
	if s == "" {
		return
	}
	maxWidth := p.width - 2*margin
	if p.measure(s) > maxWidth {
		s, _ = splitToWidth(s, maxWidth, p.measure)
	}
	p.doc.Text((p.width-p.measure(s))/2, y, p.tr(s))
}

// ContactLine rebuilds the single footer line from a record's contact block.
func ContactLine(block string) string {
	phone, email := contact.ParseBlock(block)
	var parts []string
	if phone != "" {
		parts = append(parts, "Tel: "+phone)
	}
	if email != "" {
		parts = append(parts, "Email: "+email)
	}
	return strings.Join(parts, " | ")
}
