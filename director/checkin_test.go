package director

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/focusphone/mdmserver/apns"
	"github.com/focusphone/mdmserver/types"
	"github.com/groob/plist"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingPushClient struct {
	tokens []string
	magics []string
	err    error
}

func (c *recordingPushClient) Push(pushToken, pushMagic string) error {
	c.tokens = append(c.tokens, pushToken)
	c.magics = append(c.magics, pushMagic)
	return c.err
}

func checkinRequest(t *testing.T, message types.CheckinMessage) *http.Request {
	t.Helper()
	body, err := plist.Marshal(&message)
	require.NoError(t, err)
	return httptest.NewRequest("PUT", "/checkin", bytes.NewReader(body))
}

func statusReportRequest(t *testing.T, report types.StatusReport) *http.Request {
	t.Helper()
	body, err := plist.Marshal(&report)
	require.NoError(t, err)
	return httptest.NewRequest("PUT", "/mdm", bytes.NewReader(body))
}

func TestCheckinHandlerRejectsBadPlist(t *testing.T) {
	_, cleanup := setupMockDB(t)
	defer cleanup()

	req := httptest.NewRequest("PUT", "/checkin", strings.NewReader("this is not a plist"))
	recorder := httptest.NewRecorder()

	CheckinHandler(recorder, req)

	assert.Equal(t, http.StatusBadRequest, recorder.Code)
}

func TestCheckinHandlerRejectsMissingUDID(t *testing.T) {
	_, cleanup := setupMockDB(t)
	defer cleanup()

	req := checkinRequest(t, types.CheckinMessage{
		MessageType: types.MessageTypeAuthenticate,
	})
	recorder := httptest.NewRecorder()

	CheckinHandler(recorder, req)

	assert.Equal(t, http.StatusBadRequest, recorder.Code)
}

func TestCheckinHandlerUnknownMessageTypeIsNoOp(t *testing.T) {
	_, cleanup := setupMockDB(t)
	defer cleanup()

	req := checkinRequest(t, types.CheckinMessage{
		MessageType: "SomeFutureMessage",
		UDID:        "1234-5678-123456",
	})
	recorder := httptest.NewRecorder()

	CheckinHandler(recorder, req)

	assert.Equal(t, http.StatusOK, recorder.Code)
	assert.Equal(t, "application/xml", recorder.Header().Get("Content-Type"))

	var decoded map[string]interface{}
	require.NoError(t, plist.Unmarshal(recorder.Body.Bytes(), &decoded))
	assert.Empty(t, decoded)
}

func TestCheckinHandlerAuthenticateCreatesAndCorrelates(t *testing.T) {
	mockSpy, cleanup := setupMockDB(t)
	defer cleanup()

	// unseen UDID, so the directory entry is created pending
	mockSpy.ExpectQuery(`SELECT \* FROM "devices" WHERE ud_id = \$1`).
		WithArgs("1234-5678-123456").
		WillReturnRows(sqlmock.NewRows([]string{"ud_id"}))

	mockSpy.ExpectBegin()
	mockSpy.ExpectExec(`INSERT INTO "devices"`).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mockSpy.ExpectCommit()

	// correlation finds a recently accessed token and links it
	tokenRows := sqlmock.NewRows([]string{"token", "owner_id", "profile_id", "used"}).
		AddRow("token-1", "owner-1", "profile-1", false)
	mockSpy.ExpectQuery(`SELECT \* FROM "enrollment_tokens" WHERE used = \$1`).
		WillReturnRows(tokenRows)

	mockSpy.ExpectBegin()
	mockSpy.ExpectExec(`UPDATE "enrollment_tokens" SET`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mockSpy.ExpectCommit()

	// owner and profile attribution lands on the device
	mockSpy.ExpectBegin()
	mockSpy.ExpectExec(`UPDATE "devices" SET`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mockSpy.ExpectCommit()

	req := checkinRequest(t, types.CheckinMessage{
		MessageType:  types.MessageTypeAuthenticate,
		UDID:         "1234-5678-123456",
		OSVersion:    "17.4",
		SerialNumber: "C02ABCDEFGH",
	})
	recorder := httptest.NewRecorder()

	CheckinHandler(recorder, req)

	assert.Equal(t, http.StatusOK, recorder.Code)
	assert.Equal(t, "application/xml", recorder.Header().Get("Content-Type"))

	var decoded map[string]interface{}
	require.NoError(t, plist.Unmarshal(recorder.Body.Bytes(), &decoded))
	assert.Empty(t, decoded)

	require.NoError(t, mockSpy.ExpectationsWereMet())
}

func TestCheckinHandlerTokenUpdateQueuesProfileAndPushes(t *testing.T) {
	mockSpy, cleanup := setupMockDB(t)
	defer cleanup()

	pushStub := &recordingPushClient{}
	apns.SetClientForTesting(pushStub)
	defer apns.SetClientForTesting(nil)

	// push credentials stored
	mockSpy.ExpectBegin()
	mockSpy.ExpectExec(`UPDATE "devices" SET`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mockSpy.ExpectCommit()

	// status -> enrolled
	mockSpy.ExpectBegin()
	mockSpy.ExpectExec(`UPDATE "devices" SET`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mockSpy.ExpectCommit()

	// last_checked_in stamp
	mockSpy.ExpectBegin()
	mockSpy.ExpectExec(`UPDATE "devices" SET`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mockSpy.ExpectCommit()

	// the linked token is found and consumed
	tokenRows := sqlmock.NewRows([]string{"token", "owner_id", "profile_id", "used"}).
		AddRow("token-1", "owner-1", "profile-1", false)
	mockSpy.ExpectQuery(`SELECT \* FROM "enrollment_tokens" WHERE device_ud_id = \$1`).
		WillReturnRows(tokenRows)

	mockSpy.ExpectBegin()
	mockSpy.ExpectExec(`UPDATE "enrollment_tokens" SET`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mockSpy.ExpectCommit()

	// the assigned restriction profile becomes exactly one queued command
	profileRows := sqlmock.NewRows([]string{"id", "name", "description", "allow_phone", "allow_contacts"}).
		AddRow("profile-1", "Call Only", "Phone and Contacts only", true, true)
	mockSpy.ExpectQuery(`SELECT \* FROM "restriction_profiles" WHERE id = \$1`).
		WithArgs("profile-1").
		WillReturnRows(profileRows)

	mockSpy.ExpectBegin()
	mockSpy.ExpectExec(`INSERT INTO "commands"`).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mockSpy.ExpectCommit()

	// the wake reads the freshly stored credentials
	deviceRows := sqlmock.NewRows([]string{"ud_id", "push_token", "push_magic"}).
		AddRow("1234-5678-123456", "abcd", "magic-1")
	mockSpy.ExpectQuery(`SELECT \* FROM "devices" WHERE ud_id = \$1`).
		WithArgs("1234-5678-123456").
		WillReturnRows(deviceRows)

	req := checkinRequest(t, types.CheckinMessage{
		MessageType: types.MessageTypeTokenUpdate,
		UDID:        "1234-5678-123456",
		Token:       []byte{0xab, 0xcd},
		PushMagic:   "magic-1",
	})
	recorder := httptest.NewRecorder()

	CheckinHandler(recorder, req)

	assert.Equal(t, http.StatusOK, recorder.Code)

	require.Len(t, pushStub.tokens, 1)
	assert.Equal(t, "abcd", pushStub.tokens[0])
	assert.Equal(t, "magic-1", pushStub.magics[0])

	require.NoError(t, mockSpy.ExpectationsWereMet())
}

func TestCheckinHandlerCheckOut(t *testing.T) {
	mockSpy, cleanup := setupMockDB(t)
	defer cleanup()

	// status -> removed
	mockSpy.ExpectBegin()
	mockSpy.ExpectExec(`UPDATE "devices" SET`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mockSpy.ExpectCommit()

	// push credentials cleared
	mockSpy.ExpectBegin()
	mockSpy.ExpectExec(`UPDATE "devices" SET`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mockSpy.ExpectCommit()

	req := checkinRequest(t, types.CheckinMessage{
		MessageType: types.MessageTypeCheckOut,
		UDID:        "1234-5678-123456",
	})
	recorder := httptest.NewRecorder()

	CheckinHandler(recorder, req)

	assert.Equal(t, http.StatusOK, recorder.Code)
	require.NoError(t, mockSpy.ExpectationsWereMet())
}

func TestServerHandlerRejectsBadPlist(t *testing.T) {
	_, cleanup := setupMockDB(t)
	defer cleanup()

	req := httptest.NewRequest("PUT", "/mdm", strings.NewReader("not a plist either"))
	recorder := httptest.NewRecorder()

	ServerHandler(recorder, req)

	assert.Equal(t, http.StatusBadRequest, recorder.Code)
}

func TestServerHandlerIdleEmptyQueue(t *testing.T) {
	mockSpy, cleanup := setupMockDB(t)
	defer cleanup()

	// last_checked_in stamp
	mockSpy.ExpectBegin()
	mockSpy.ExpectExec(`UPDATE "devices" SET`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mockSpy.ExpectCommit()

	// queue drained
	mockSpy.ExpectQuery(`SELECT \* FROM "commands" WHERE device_ud_id = \$1 AND status = \$2`).
		WillReturnRows(sqlmock.NewRows([]string{"command_uuid"}))

	req := statusReportRequest(t, types.StatusReport{
		UDID:   "1234-5678-123456",
		Status: types.StatusIdle,
	})
	recorder := httptest.NewRecorder()

	ServerHandler(recorder, req)

	assert.Equal(t, http.StatusOK, recorder.Code)

	var decoded map[string]interface{}
	require.NoError(t, plist.Unmarshal(recorder.Body.Bytes(), &decoded))
	assert.Empty(t, decoded)

	require.NoError(t, mockSpy.ExpectationsWereMet())
}

func TestServerHandlerIdleDeliversClaimedCommand(t *testing.T) {
	mockSpy, cleanup := setupMockDB(t)
	defer cleanup()

	envelope := []byte("<plist>command envelope</plist>")

	// last_checked_in stamp
	mockSpy.ExpectBegin()
	mockSpy.ExpectExec(`UPDATE "devices" SET`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mockSpy.ExpectCommit()

	rows := sqlmock.NewRows([]string{"command_uuid", "device_ud_id", "request_type", "status", "payload"}).
		AddRow("uuid-1", "1234-5678-123456", "InstallProfile", types.CommandStatusPending, envelope)
	mockSpy.ExpectQuery(`SELECT \* FROM "commands" WHERE device_ud_id = \$1 AND status = \$2`).
		WillReturnRows(rows)

	// claim
	mockSpy.ExpectBegin()
	mockSpy.ExpectExec(`UPDATE "commands" SET`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mockSpy.ExpectCommit()

	req := statusReportRequest(t, types.StatusReport{
		UDID:   "1234-5678-123456",
		Status: types.StatusIdle,
	})
	recorder := httptest.NewRecorder()

	ServerHandler(recorder, req)

	assert.Equal(t, http.StatusOK, recorder.Code)
	assert.Equal(t, "application/xml", recorder.Header().Get("Content-Type"))
	assert.Equal(t, envelope, recorder.Body.Bytes())

	require.NoError(t, mockSpy.ExpectationsWereMet())
}

func TestServerHandlerNotNowDoesNotDeliver(t *testing.T) {
	mockSpy, cleanup := setupMockDB(t)
	defer cleanup()

	// last_checked_in stamp
	mockSpy.ExpectBegin()
	mockSpy.ExpectExec(`UPDATE "devices" SET`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mockSpy.ExpectCommit()

	// the referenced command goes back to pending
	rows := sqlmock.NewRows([]string{"command_uuid", "device_ud_id", "request_type", "status"}).
		AddRow("uuid-1", "1234-5678-123456", "InstallProfile", types.CommandStatusSent)
	mockSpy.ExpectQuery(`SELECT \* FROM "commands" WHERE command_uuid = \$1`).
		WithArgs("uuid-1").
		WillReturnRows(rows)

	mockSpy.ExpectBegin()
	mockSpy.ExpectExec(`UPDATE "commands" SET`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mockSpy.ExpectCommit()

	req := statusReportRequest(t, types.StatusReport{
		UDID:        "1234-5678-123456",
		Status:      types.StatusNotNow,
		CommandUUID: "uuid-1",
	})
	recorder := httptest.NewRecorder()

	ServerHandler(recorder, req)

	assert.Equal(t, http.StatusOK, recorder.Code)

	// No delivery attempt: the body is an empty plist, not an envelope.
	var decoded map[string]interface{}
	require.NoError(t, plist.Unmarshal(recorder.Body.Bytes(), &decoded))
	assert.Empty(t, decoded)

	require.NoError(t, mockSpy.ExpectationsWereMet())
}
