package types

// Check-in message kinds a device sends to /checkin.
const (
	MessageTypeAuthenticate = "Authenticate"
	MessageTypeTokenUpdate  = "TokenUpdate"
	MessageTypeCheckOut     = "CheckOut"
)

// Status values a device reports to /mdm.
const (
	StatusIdle         = "Idle"
	StatusAcknowledged = "Acknowledged"
	StatusError        = "Error"
	StatusNotNow       = "NotNow"
)

// CheckinMessage is the plist body of a /checkin request. Only MessageType
// and UDID are guaranteed; the remaining fields depend on the message kind
// (TokenUpdate carries the push credentials, Authenticate the best-effort
// hardware info).
type CheckinMessage struct {
	MessageType string `plist:"MessageType"`
	Topic       string `plist:"Topic"`
	UDID        string `plist:"UDID"`

	// TokenUpdate
	PushMagic   string `plist:"PushMagic"`
	Token       []byte `plist:"Token"`
	UnlockToken []byte `plist:"UnlockToken"`

	// Authenticate
	DeviceName   string `plist:"DeviceName"`
	Model        string `plist:"Model"`
	ModelName    string `plist:"ModelName"`
	OSVersion    string `plist:"OSVersion"`
	BuildVersion string `plist:"BuildVersion"`
	SerialNumber string `plist:"SerialNumber"`
}

// ErrorChainItem is one entry of the ordered error descriptors a device
// attaches to an Error status report.
type ErrorChainItem struct {
	ErrorCode            int    `plist:"ErrorCode"`
	ErrorDomain          string `plist:"ErrorDomain"`
	LocalizedDescription string `plist:"LocalizedDescription"`
	USEnglishDescription string `plist:"USEnglishDescription"`
}

// QueryResponses holds the fields we request with a DeviceInformation
// command. Devices omit queries they cannot answer.
type QueryResponses struct {
	DeviceName   string  `plist:"DeviceName"`
	OSVersion    string  `plist:"OSVersion"`
	BuildVersion string  `plist:"BuildVersion"`
	Model        string  `plist:"Model"`
	ModelName    string  `plist:"ModelName"`
	ProductName  string  `plist:"ProductName"`
	SerialNumber string  `plist:"SerialNumber"`
	BatteryLevel float64 `plist:"BatteryLevel"`
	IsSupervised bool    `plist:"IsSupervised"`
}

// StatusReport is the plist body of a /mdm request: the device's report on
// the command it was last handed, or Idle when it polls with nothing
// outstanding.
type StatusReport struct {
	UDID           string           `plist:"UDID"`
	Status         string           `plist:"Status"`
	CommandUUID    string           `plist:"CommandUUID"`
	ErrorChain     []ErrorChainItem `plist:"ErrorChain,omitempty"`
	QueryResponses *QueryResponses  `plist:"QueryResponses,omitempty"`
}

// DeviceInformationQueries is the field list requested by the
// DeviceInformation command.
var DeviceInformationQueries = []string{
	"DeviceName",
	"OSVersion",
	"BuildVersion",
	"ModelName",
	"Model",
	"ProductName",
	"SerialNumber",
	"UDID",
	"BatteryLevel",
	"IsSupervised",
}
