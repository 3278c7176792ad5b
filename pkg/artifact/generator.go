package artifact

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"image/draw"
	"image/jpeg"
	_ "image/png"

	"github.com/angelmondragon/vouchers-backend/pkg/config"
	"github.com/angelmondragon/vouchers-backend/pkg/db/models"
	"github.com/angelmondragon/vouchers-backend/pkg/enums"
	"github.com/go-pdf/fpdf"
	qrcode "github.com/skip2/go-qrcode"
)

// Template layout constants. The QR block is pasted onto the branded
// template at a fixed offset, sized to fill the reserved square.
const (
	qrSize    = 500
	qrOffsetX = 29
	qrOffsetY = 43

	jpegQuality = 90
)

// ErrTemplateUnavailable wraps any failure to fetch or decode the template
// image the artifact is composed onto.
var ErrTemplateUnavailable = errors.New("voucher template unavailable")

type objectReader interface {
	ReadObject(ctx context.Context, bucket, object string) ([]byte, error)
}

// Artifact is a rendered voucher ready to be written to a response or
// attached to an email.
type Artifact struct {
	Data        []byte
	ContentType string
	Filename    string
}

// Generator renders voucher artifacts from stored records. Rendering is a
// pure function of the record and the template, so the same voucher can be
// re-rendered at any time without touching the store.
type Generator struct {
	storage        objectReader
	bucket         string
	templateObject string
	format         enums.ArtifactFormat
	filename       string
}

func NewGenerator(storage objectReader, storageCfg config.StorageConfig, artifactCfg config.ArtifactConfig) (*Generator, error) {
	if storage == nil {
		return nil, errors.New("storage reader is required")
	}
	format, err := enums.ParseArtifactFormat(artifactCfg.Format)
	if err != nil {
		return nil, err
	}
	filename := artifactCfg.Filename
	if filename == "" {
		filename = "voucher"
	}
	return &Generator{
		storage:        storage,
		bucket:         storageCfg.BucketName,
		templateObject: storageCfg.TemplateObject,
		format:         format,
		filename:       filename,
	}, nil
}

// Format returns the configured output format.
func (g *Generator) Format() enums.ArtifactFormat {
	return g.format
}

// Render composes the voucher artifact in the configured format.
func (g *Generator) Render(ctx context.Context, voucher *models.Voucher) (*Artifact, error) {
	return g.RenderAs(ctx, voucher, g.format)
}

// RenderAs composes the voucher artifact in an explicit format, overriding
// the configured default.
func (g *Generator) RenderAs(ctx context.Context, voucher *models.Voucher, format enums.ArtifactFormat) (*Artifact, error) {
	if voucher == nil {
		return nil, errors.New("voucher is required")
	}

	img, err := g.composeImage(ctx, voucher)
	if err != nil {
		return nil, err
	}

	switch format {
	case enums.ArtifactFormatJPEG:
		data, err := encodeJPEG(img)
		if err != nil {
			return nil, err
		}
		return &Artifact{
			Data:        data,
			ContentType: format.ContentType(),
			Filename:    g.filename + "." + format.Extension(),
		}, nil
	case enums.ArtifactFormatPDF:
		data, err := g.encodePDF(img, voucher)
		if err != nil {
			return nil, err
		}
		return &Artifact{
			Data:        data,
			ContentType: format.ContentType(),
			Filename:    g.filename + "." + format.Extension(),
		}, nil
	default:
		return nil, fmt.Errorf("unsupported artifact format %q", format)
	}
}

func (g *Generator) composeImage(ctx context.Context, voucher *models.Voucher) (image.Image, error) {
	raw, err := g.storage.ReadObject(ctx, g.bucket, g.templateObject)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTemplateUnavailable, err)
	}

	template, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("%w: decoding template: %w", ErrTemplateUnavailable, err)
	}

	qrImage, err := qrImageFor(voucher)
	if err != nil {
		return nil, err
	}

	canvas := image.NewRGBA(template.Bounds())
	draw.Draw(canvas, canvas.Bounds(), template, template.Bounds().Min, draw.Src)

	target := image.Rect(qrOffsetX, qrOffsetY, qrOffsetX+qrSize, qrOffsetY+qrSize)
	draw.Draw(canvas, target, qrImage, qrImage.Bounds().Min, draw.Over)

	return canvas, nil
}

// qrImageFor encodes the voucher's record as a QR block. The payload mirrors
// the stored record's wire shape so scanners see the same keys the API does.
func qrImageFor(voucher *models.Voucher) (image.Image, error) {
	payload, err := json.Marshal(map[string]string{
		"voucher-id": voucher.VoucherID.String(),
		"first-name": voucher.FirstName,
		"last-name":  voucher.LastName,
		"percentage": voucher.Percentage,
	})
	if err != nil {
		return nil, fmt.Errorf("encoding qr payload: %w", err)
	}

	qr, err := qrcode.New(string(payload), qrcode.Medium)
	if err != nil {
		return nil, fmt.Errorf("generating qr code: %w", err)
	}
	qr.DisableBorder = false
	return qr.Image(qrSize), nil
}

func encodeJPEG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return nil, fmt.Errorf("encoding artifact: %w", err)
	}
	return buf.Bytes(), nil
}

// encodePDF wraps the composed image in a single-page document sized to the
// image, with the voucher details printed beneath it.
func (g *Generator) encodePDF(img image.Image, voucher *models.Voucher) ([]byte, error) {
	jpegData, err := encodeJPEG(img)
	if err != nil {
		return nil, err
	}

	bounds := img.Bounds()
	const scale = 0.264583 // px to mm at 96 dpi
	widthMM := float64(bounds.Dx()) * scale
	heightMM := float64(bounds.Dy()) * scale
	const footerMM = 24.0

	pdf := fpdf.NewCustom(&fpdf.InitType{
		UnitStr: "mm",
		Size:    fpdf.SizeType{Wd: widthMM, Ht: heightMM + footerMM},
	})
	pdf.SetMargins(0, 0, 0)
	pdf.SetAutoPageBreak(false, 0)
	pdf.AddPage()

	opts := fpdf.ImageOptions{ImageType: "JPG"}
	pdf.RegisterImageOptionsReader("voucher", opts, bytes.NewReader(jpegData))
	pdf.ImageOptions("voucher", 0, 0, widthMM, heightMM, false, opts, 0, "")

	pdf.SetFont("Helvetica", "", 10)
	pdf.SetXY(4, heightMM+4)
	pdf.CellFormat(0, 5, fmt.Sprintf("%s %s - %s%% off", voucher.FirstName, voucher.LastName, voucher.Percentage), "", 1, "L", false, 0, "")
	if voucher.ExpiryDate != nil {
		pdf.SetX(4)
		pdf.CellFormat(0, 5, "Valid until "+voucher.ExpiryDate.Format("2 January 2006"), "", 1, "L", false, 0, "")
	}
	pdf.SetX(4)
	pdf.CellFormat(0, 5, "Ref "+voucher.VoucherID.String(), "", 1, "L", false, 0, "")

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("encoding artifact: %w", err)
	}
	return buf.Bytes(), nil
}
