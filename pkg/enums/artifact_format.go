package enums

import "fmt"

// ArtifactFormat selects the rendered voucher artifact encoding.
type ArtifactFormat string

const (
	ArtifactFormatJPEG ArtifactFormat = "jpeg"
	ArtifactFormatPDF  ArtifactFormat = "pdf"
)

var validArtifactFormats = []ArtifactFormat{
	ArtifactFormatJPEG,
	ArtifactFormatPDF,
}

// String implements fmt.Stringer.
func (a ArtifactFormat) String() string {
	return string(a)
}

// ContentType returns the MIME type served for the format.
func (a ArtifactFormat) ContentType() string {
	if a == ArtifactFormatPDF {
		return "application/pdf"
	}
	return "image/jpeg"
}

// Extension returns the download file extension for the format.
func (a ArtifactFormat) Extension() string {
	if a == ArtifactFormatPDF {
		return "pdf"
	}
	return "jpg"
}

// IsValid reports whether the value is a supported artifact format.
func (a ArtifactFormat) IsValid() bool {
	for _, candidate := range validArtifactFormats {
		if candidate == a {
			return true
		}
	}
	return false
}

// ParseArtifactFormat converts raw input into ArtifactFormat.
func ParseArtifactFormat(value string) (ArtifactFormat, error) {
	for _, candidate := range validArtifactFormats {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid artifact format %q", value)
}
