package handlers

import (
	"encoding/base64"
	"net/http"
	"strings"

	"guestcharge/services"
	"guestcharge/templates"
	"guestcharge/utils"
)

// qrTarget reads the connector the operator wants a code for.
func qrTarget(r *http.Request) (services.Navigation, error) {
	q := r.URL.Query()
	return services.ParseNavigation(q.Get(services.FieldChargePoint), q, false)
}

// OperatorQR renders the QR generator and, once a connector is given, the code.
func (h *Handlers) OperatorQR(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	data := templates.OperatorQRData{
		ChargePointID: q.Get(services.FieldChargePoint),
		ConnectorID:   q.Get(services.ParamConnectorID),
		TenantID:      q.Get(services.ParamTenantID),
	}
	if strings.TrimSpace(data.ChargePointID) == "" {
		renderPage(w, r, http.StatusOK, "Charge Point QR Code", templates.OperatorQRPage(data))
		return
	}

	nav, err := qrTarget(r)
	if err != nil {
		data.Error = services.UserMessage(err, "Invalid connector")
		renderPage(w, r, http.StatusBadRequest, "Charge Point QR Code", templates.OperatorQRPage(data))
		return
	}

	png, link, err := services.ChargePointQR(h.publicURL(r), nav, services.DefaultQRSize)
	if err != nil {
		utils.Error("operator", "Error generating QR code", "charge_point_id", nav.ChargePointID, "error", err)
		data.Error = "Error generating QR code"
		renderPage(w, r, http.StatusInternalServerError, "Charge Point QR Code", templates.OperatorQRPage(data))
		return
	}

	utils.Info("operator", "QR code generated", "charge_point_id", nav.ChargePointID, "connector_id", nav.ConnectorID)
	data.Link = link
	data.PNGBase64 = base64.StdEncoding.EncodeToString(png)
	data.ImageURL = "/operator/qr.png?" + r.URL.RawQuery
	renderPage(w, r, http.StatusOK, "Charge Point QR Code", templates.OperatorQRPage(data))
}

// OperatorQRImage serves the bare PNG for printing.
func (h *Handlers) OperatorQRImage(w http.ResponseWriter, r *http.Request) {
	nav, err := qrTarget(r)
	if err != nil {
		http.Error(w, services.UserMessage(err, "Invalid connector"), http.StatusBadRequest)
		return
	}

	png, _, err := services.ChargePointQR(h.publicURL(r), nav, services.DefaultQRSize)
	if err != nil {
		utils.Error("operator", "Error generating QR code", "charge_point_id", nav.ChargePointID, "error", err)
		http.Error(w, "Error generating QR code", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	if _, err := w.Write(png); err != nil {
		utils.Error("operator", "Error writing QR image", "error", err)
	}
}
