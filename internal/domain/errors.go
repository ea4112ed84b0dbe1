package domain

import "errors"

// Code is the machine-stable identifier returned in error bodies.
type Code string

const (
	CodeInvalidClassification Code = "InvalidClassification"
	CodeInvalidAssetID        Code = "InvalidAssetID"
	CodeNoFilePresent         Code = "NoFilePresent"
	CodePayloadTooLarge       Code = "PayloadTooLarge"
	CodeUnsupportedMediaType  Code = "UnsupportedMediaType"
	CodeUploadFailed          Code = "UploadFailed"
	CodeListFailed            Code = "ListFailed"
	CodeResolveFailed         Code = "ResolveFailed"
	CodeAssetNotFound         Code = "AssetNotFound"
	CodeAuthError             Code = "AuthError"
	CodeConfigIncomplete      Code = "ConfigIncomplete"
	CodeInternal              Code = "Internal"
)

var (
	ErrInvalidClassification = errors.New("invalid classification")
	ErrInvalidAssetID        = errors.New("invalid asset id")
	ErrNoFilePresent         = errors.New("no file present")
	ErrPayloadTooLarge       = errors.New("payload too large")
	ErrUnsupportedMediaType  = errors.New("unsupported media type")
	ErrUploadFailed          = errors.New("upload failed")
	ErrListFailed            = errors.New("list failed")
	ErrResolveFailed         = errors.New("resolve failed")
	ErrAssetNotFound         = errors.New("asset not found")
	ErrAuth                  = errors.New("remote host rejected credentials")
	ErrConfigIncomplete      = errors.New("configuration incomplete")
)

// Ordered so that ErrAuth wins over the generic operation failures it may
// be wrapped together with.
var codeTable = []struct {
	err  error
	code Code
}{
	{ErrConfigIncomplete, CodeConfigIncomplete},
	{ErrAuth, CodeAuthError},
	{ErrInvalidClassification, CodeInvalidClassification},
	{ErrInvalidAssetID, CodeInvalidAssetID},
	{ErrNoFilePresent, CodeNoFilePresent},
	{ErrPayloadTooLarge, CodePayloadTooLarge},
	{ErrUnsupportedMediaType, CodeUnsupportedMediaType},
	{ErrAssetNotFound, CodeAssetNotFound},
	{ErrUploadFailed, CodeUploadFailed},
	{ErrListFailed, CodeListFailed},
	{ErrResolveFailed, CodeResolveFailed},
}

// CodeOf maps an error chain to its taxonomy code. Unknown errors are Internal.
func CodeOf(err error) Code {
	if err == nil {
		return ""
	}
	for _, entry := range codeTable {
		if errors.Is(err, entry.err) {
			return entry.code
		}
	}
	return CodeInternal
}
