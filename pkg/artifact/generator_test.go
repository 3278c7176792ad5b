package artifact

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/jpeg"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/vouchers-backend/pkg/config"
	"github.com/angelmondragon/vouchers-backend/pkg/db/models"
	"github.com/angelmondragon/vouchers-backend/pkg/enums"
	"github.com/angelmondragon/vouchers-backend/pkg/storage/gcs"
)

type stubReader struct {
	data []byte
	err  error

	gotBucket string
	gotObject string
}

func (s *stubReader) ReadObject(_ context.Context, bucket, object string) ([]byte, error) {
	s.gotBucket = bucket
	s.gotObject = object
	if s.err != nil {
		return nil, s.err
	}
	return s.data, nil
}

func templateJPEG(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 560, 640))
	for x := 0; x < 560; x++ {
		for y := 0; y < 640; y++ {
			img.Set(x, y, color.White)
		}
	}
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, img, nil))
	return buf.Bytes()
}

func testVoucher() *models.Voucher {
	expiry := time.Date(2027, 3, 1, 0, 0, 0, 0, time.UTC)
	return &models.Voucher{
		VoucherID:  uuid.MustParse("a7f43e1c-0f55-4f06-9c2e-64c5ad3a9a01"),
		FirstName:  "Ada",
		LastName:   "Lovelace",
		Percentage: "25",
		ExpiryDate: &expiry,
		Status:     enums.VoucherStatusUnused,
	}
}

func newTestGenerator(t *testing.T, reader *stubReader, format string) *Generator {
	t.Helper()
	gen, err := NewGenerator(reader,
		config.StorageConfig{BucketName: "vouchers-assets", TemplateObject: "templates/voucher-template.jpg"},
		config.ArtifactConfig{Format: format, Filename: "voucher"},
	)
	require.NoError(t, err)
	return gen
}

func TestRenderJPEG(t *testing.T) {
	reader := &stubReader{data: templateJPEG(t)}
	gen := newTestGenerator(t, reader, "jpeg")

	art, err := gen.Render(context.Background(), testVoucher())
	require.NoError(t, err)

	assert.Equal(t, "vouchers-assets", reader.gotBucket)
	assert.Equal(t, "templates/voucher-template.jpg", reader.gotObject)
	assert.Equal(t, "image/jpeg", art.ContentType)
	assert.Equal(t, "voucher.jpg", art.Filename)
	require.True(t, len(art.Data) > 2)
	assert.Equal(t, []byte{0xff, 0xd8}, art.Data[:2], "jpeg magic bytes")

	img, format, err := image.Decode(bytes.NewReader(art.Data))
	require.NoError(t, err)
	assert.Equal(t, "jpeg", format)
	assert.Equal(t, 560, img.Bounds().Dx())
	assert.Equal(t, 640, img.Bounds().Dy())
}

func TestRenderIsDeterministic(t *testing.T) {
	reader := &stubReader{data: templateJPEG(t)}
	gen := newTestGenerator(t, reader, "jpeg")

	first, err := gen.Render(context.Background(), testVoucher())
	require.NoError(t, err)
	second, err := gen.Render(context.Background(), testVoucher())
	require.NoError(t, err)

	assert.Equal(t, first.Data, second.Data, "same record renders the same bytes")
}

func TestRenderPDF(t *testing.T) {
	reader := &stubReader{data: templateJPEG(t)}
	gen := newTestGenerator(t, reader, "pdf")

	art, err := gen.Render(context.Background(), testVoucher())
	require.NoError(t, err)

	assert.Equal(t, "application/pdf", art.ContentType)
	assert.Equal(t, "voucher.pdf", art.Filename)
	require.True(t, len(art.Data) > 4)
	assert.Equal(t, []byte("%PDF"), art.Data[:4])
}

func TestRenderAsOverridesFormat(t *testing.T) {
	reader := &stubReader{data: templateJPEG(t)}
	gen := newTestGenerator(t, reader, "jpeg")

	art, err := gen.RenderAs(context.Background(), testVoucher(), enums.ArtifactFormatPDF)
	require.NoError(t, err)
	assert.Equal(t, "application/pdf", art.ContentType)
}

func TestRenderTemplateMissing(t *testing.T) {
	reader := &stubReader{err: gcs.ErrObjectNotFound}
	gen := newTestGenerator(t, reader, "jpeg")

	_, err := gen.Render(context.Background(), testVoucher())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTemplateUnavailable)
	assert.ErrorIs(t, err, gcs.ErrObjectNotFound)
}

func TestRenderTemplateNotAnImage(t *testing.T) {
	reader := &stubReader{data: []byte("not an image")}
	gen := newTestGenerator(t, reader, "jpeg")

	_, err := gen.Render(context.Background(), testVoucher())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTemplateUnavailable)
}

func TestNewGeneratorRejectsUnknownFormat(t *testing.T) {
	_, err := NewGenerator(&stubReader{},
		config.StorageConfig{BucketName: "b"},
		config.ArtifactConfig{Format: "gif"},
	)
	require.Error(t, err)
}
