package director

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/focusphone/mdmserver/payloads"
	"github.com/focusphone/mdmserver/types"
	"github.com/focusphone/mdmserver/utils"
	"github.com/gorilla/mux"
	"gopkg.in/ajg/form.v1"
)

// EnrollProfileHandler serves the enrollment document for a valid token.
// Fetching it stamps the token's access time, which is the signal Authenticate
// correlation orders on.
func EnrollProfileHandler(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	tokenString := vars["token"]

	token, err := ValidateTokenForFetch(tokenString)
	if err != nil {
		WarnLogger(LogHolder{Message: err.Error(), EnrollmentToken: tokenString})
		http.Error(w, "invalid or expired enrollment token", http.StatusBadRequest)
		return
	}

	profile, err := payloads.Enrollment(payloads.EnrollmentOptions{
		ServerURL:     utils.ServerURL(),
		Topic:         utils.Topic(),
		OrgName:       utils.OrgName(),
		OrgIdentifier: utils.OrgIdentifier(),
		UseDevAPNS:    !utils.APNSProduction(),
	})
	if err != nil {
		ErrorLogger(LogHolder{Message: err.Error(), EnrollmentToken: tokenString})
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	InfoLogger(LogHolder{
		Message:         "Served enrollment profile",
		EnrollmentToken: token.Token,
		TokenOwner:      token.OwnerID,
	})

	w.Header().Set("Content-Type", "application/x-apple-aspen-config")
	w.Header().Set("Content-Disposition", `attachment; filename="enroll.mobileconfig"`)
	if _, err := w.Write(profile); err != nil {
		ErrorLogger(LogHolder{Message: err.Error()})
	}
}

type tokenRequest struct {
	OwnerID   string `form:"owner_id" json:"owner_id"`
	ProfileID string `form:"profile_id" json:"profile_id"`
}

type tokenResponse struct {
	Token         string `json:"token"`
	ExpiresAt     string `json:"expires_at"`
	EnrollmentURL string `json:"enrollment_url"`
}

// IssueTokenHandler creates an enrollment token for an owner.
func IssueTokenHandler(w http.ResponseWriter, r *http.Request) {
	var request tokenRequest
	if err := form.NewDecoder(r.Body).Decode(&request); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	token, err := IssueToken(request.OwnerID, request.ProfileID)
	if err != nil {
		ErrorLogger(LogHolder{Message: err.Error(), TokenOwner: request.OwnerID})
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	response := tokenResponse{
		Token:         token.Token,
		ExpiresAt:     token.ExpiresAt.Format("2006-01-02T15:04:05Z07:00"),
		EnrollmentURL: fmt.Sprintf("%v/enroll/%v", utils.ServerURL(), token.Token),
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(response); err != nil {
		ErrorLogger(LogHolder{Message: err.Error()})
	}
}

// PushDeviceHandler triggers an APNs wake for a single device.
func PushDeviceHandler(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	udid := vars["udid"]

	if err := PushDevice(udid); err != nil {
		ErrorLogger(LogHolder{Message: err.Error(), DeviceUDID: udid})
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	fmt.Fprintln(w, `{"status":"pushed"}`)
}

// DeviceInformationHandler queues a DeviceInformation query for a device and
// wakes it.
func DeviceInformationHandler(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	udid := vars["udid"]

	commandUUID, envelope, err := payloads.DeviceInformation(types.DeviceInformationQueries)
	if err != nil {
		ErrorLogger(LogHolder{Message: err.Error(), DeviceUDID: udid})
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	command, err := QueueCommand(udid, payloads.RequestTypeDeviceInformation, commandUUID, envelope)
	if err != nil {
		ErrorLogger(LogHolder{Message: err.Error(), DeviceUDID: udid})
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	if err := PushDevice(udid); err != nil {
		WarnLogger(LogHolder{Message: err.Error(), DeviceUDID: udid})
	}

	w.Header().Set("Content-Type", "application/json")
	fmt.Fprintf(w, `{"command_uuid":%q}`+"\n", command.CommandUUID)
}

// HealthCheckHandler reports liveness for load balancer probes.
func HealthCheckHandler(w http.ResponseWriter, r *http.Request) {
	fmt.Fprintln(w, "ok")
}
