package controllers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/angelmondragon/vouchers-backend/api/responses"
	"github.com/angelmondragon/vouchers-backend/api/validators"
	"github.com/angelmondragon/vouchers-backend/internal/vouchers"
	"github.com/angelmondragon/vouchers-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/vouchers-backend/pkg/errors"
	"github.com/angelmondragon/vouchers-backend/pkg/logger"
)

// VoucherGenerate issues a new voucher and streams the rendered artifact
// back. Clients that Accept application/json get the stored record instead;
// the artifact stays reachable through the artifact route.
func VoucherGenerate(svc vouchers.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body vouchers.CreateVoucherRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		voucher, art, err := svc.CreateVoucher(r.Context(), body.ToInput())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if wantsRecord(r) {
			responses.WriteSuccessStatus(w, http.StatusCreated, vouchers.ToVoucherItem(voucher))
			return
		}

		responses.WriteBinary(w, art.ContentType, art.Filename, art.Data)
	}
}

// VoucherClaim marks a voucher used.
func VoucherClaim(svc vouchers.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body vouchers.ClaimVoucherRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		voucherID, err := uuid.Parse(body.VoucherID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "voucher_id must be a valid uuid"))
			return
		}

		voucher, err := svc.ClaimVoucher(r.Context(), voucherID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, vouchers.ClaimResult{
			VoucherID:  voucher.VoucherID.String(),
			Status:     voucher.Status.String(),
			Percentage: voucher.Percentage,
		})
	}
}

// VoucherList returns every voucher.
func VoucherList(svc vouchers.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rows, err := svc.ListVouchers(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, vouchers.ToVoucherItems(rows))
	}
}

// VoucherGet returns a single voucher by id.
func VoucherGet(svc vouchers.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		voucherID, err := pathVoucherID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		voucher, err := svc.GetVoucher(r.Context(), voucherID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, vouchers.ToVoucherItem(voucher))
	}
}

// VoucherArtifact re-renders the stored voucher and streams it. The format
// query parameter overrides the configured default.
func VoucherArtifact(svc vouchers.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		voucherID, err := pathVoucherID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var format enums.ArtifactFormat
		if raw := r.URL.Query().Get("format"); raw != "" {
			format, err = enums.ParseArtifactFormat(raw)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "format must be jpeg or pdf"))
				return
			}
		}

		art, err := svc.RenderArtifact(r.Context(), voucherID, format)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteBinary(w, art.ContentType, art.Filename, art.Data)
	}
}

func pathVoucherID(r *http.Request) (uuid.UUID, error) {
	raw := chi.URLParam(r, "voucherId")
	voucherID, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, "voucher id must be a valid uuid")
	}
	return voucherID, nil
}

func wantsRecord(r *http.Request) bool {
	return strings.Contains(r.Header.Get("Accept"), "application/json")
}
