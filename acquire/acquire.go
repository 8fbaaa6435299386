/*
The package acquire reads the stored short messages from a modem or phone in PDU mode (3GPP TS 27.005)
and arranges them into an image that can be carved like any memory dump. This allows to compare what
the device reports with what carving recovers from a dump of the same device.

Abbreviations:
SMSC: Short Message Service Centre
IMEI: International Mobile Equipment Identity
*/
package acquire

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/ftl/sms-carver/tpdu"
)

type Requester interface {
	Request(context.Context, string) ([]string, error)
}

type RequesterFunc func(context.Context, string) ([]string, error)

func (f RequesterFunc) Request(ctx context.Context, request string) ([]string, error) {
	return f(ctx, request)
}

const (
	// SetPDUMode selects the PDU mode for all message commands according to 27.005 3.2.3
	SetPDUMode = "AT+CMGF=0"
	// RequestIMEICommand reads the product serial number according to 27.007 5.4
	RequestIMEICommand = "AT+CGSN"
)

// Storage is a message storage of the device according to 27.005 3.2.2
type Storage string

// All message storages that may hold short messages
const (
	SIM           Storage = "SM"
	Phone         Storage = "ME"
	AnyStorage    Storage = "MT"
	StatusReports Storage = "SR"
)

// StorageByName returns the storage with the given name, e.g. "SM" or "sim".
func StorageByName(name string) (Storage, error) {
	sanitized := strings.ToUpper(strings.TrimSpace(name))
	switch sanitized {
	case "SM", "SIM":
		return SIM, nil
	case "ME", "PHONE":
		return Phone, nil
	case "MT", "ANY":
		return AnyStorage, nil
	case "SR":
		return StatusReports, nil
	default:
		return "", fmt.Errorf("invalid message storage %s", name)
	}
}

// SelectStorage for reading, writing and receiving messages according to 27.005 3.2.2
func SelectStorage(storage Storage) string {
	return fmt.Sprintf(`AT+CPMS="%s","%s","%s"`, storage, storage, storage)
}

// StorageUsage tells how many messages are stored in a storage.
type StorageUsage struct {
	Storage Storage
	Used    int
	Total   int
}

var storageUsageResponse = regexp.MustCompile(`^\+CPMS: "(\w+)",(\d+),(\d+)`)

// RequestStorageUsage reads the usage of the storage that is used for reading according to 27.005 3.2.2
func RequestStorageUsage(ctx context.Context, requester Requester) (StorageUsage, error) {
	responses, err := requester.Request(ctx, "AT+CPMS?")
	if err != nil {
		return StorageUsage{}, err
	}
	if len(responses) < 1 {
		return StorageUsage{}, fmt.Errorf("no response received")
	}
	response := strings.ToUpper(strings.TrimSpace(responses[0]))
	parts := storageUsageResponse.FindStringSubmatch(response)
	if len(parts) != 4 {
		return StorageUsage{}, fmt.Errorf("unexpected response: %s", responses[0])
	}

	used, err := strconv.Atoi(parts[2])
	if err != nil {
		return StorageUsage{}, err
	}
	total, err := strconv.Atoi(parts[3])
	if err != nil {
		return StorageUsage{}, err
	}
	return StorageUsage{Storage: Storage(parts[1]), Used: used, Total: total}, nil
}

var imeiResponse = regexp.MustCompile(`^(?:\+CGSN: *)?"?(\d{14,17})"?$`)

// RequestIMEI reads the IMEI of the device according to 27.007 5.4
func RequestIMEI(ctx context.Context, requester Requester) (string, error) {
	responses, err := requester.Request(ctx, RequestIMEICommand)
	if err != nil {
		return "", err
	}
	for _, response := range responses {
		parts := imeiResponse.FindStringSubmatch(strings.ToUpper(strings.TrimSpace(response)))
		if len(parts) == 2 {
			return parts[1], nil
		}
	}
	if len(responses) < 1 {
		return "", fmt.Errorf("no response received")
	}
	return "", fmt.Errorf("unexpected response: %s", responses[0])
}

// MessageStatus is the <stat> value of stored messages in PDU mode according to 27.005 3.1
type MessageStatus int

// All message status values
const (
	ReceivedUnread MessageStatus = iota
	ReceivedRead
	StoredUnsent
	StoredSent
	AllMessages
)

func (s MessageStatus) String() string {
	switch s {
	case ReceivedUnread:
		return "REC UNREAD"
	case ReceivedRead:
		return "REC READ"
	case StoredUnsent:
		return "STO UNSENT"
	case StoredSent:
		return "STO SENT"
	case AllMessages:
		return "ALL"
	default:
		return "UNKNOWN"
	}
}

// StoredPDU is a message as it is stored in the device.
type StoredPDU struct {
	Index  int
	Status MessageStatus
	SMSC   []byte
	TPDU   []byte
}

// ListPDUs lists the messages with the given status according to 27.005 3.4.2
func ListPDUs(status MessageStatus) string {
	return fmt.Sprintf("AT+CMGL=%d", status)
}

var listPDUHeader = regexp.MustCompile(`^\+CMGL: *(\d+),(\d+),[^,]*,(\d+)$`)

// ListStoredPDUs reads all messages with the given status from the currently selected storage.
// The SMSC address is separated from the TPDU.
func ListStoredPDUs(ctx context.Context, requester Requester, status MessageStatus) ([]StoredPDU, error) {
	responses, err := requester.Request(ctx, ListPDUs(status))
	if err != nil {
		return nil, err
	}

	var result []StoredPDU
	for i := 0; i < len(responses); i++ {
		header := strings.TrimSpace(responses[i])
		if header == "" {
			continue
		}
		parts := listPDUHeader.FindStringSubmatch(strings.ToUpper(header))
		if len(parts) != 4 {
			return nil, fmt.Errorf("unexpected response: %s", responses[i])
		}
		if i+1 >= len(responses) {
			return nil, fmt.Errorf("missing PDU for %s", header)
		}
		i++

		index, _ := strconv.Atoi(parts[1])
		stat, _ := strconv.Atoi(parts[2])
		length, _ := strconv.Atoi(parts[3])
		pdu, err := parseStoredPDU(responses[i], length)
		if err != nil {
			return nil, fmt.Errorf("message %d: %w", index, err)
		}
		pdu.Index = index
		pdu.Status = MessageStatus(stat)
		result = append(result, pdu)
	}
	return result, nil
}

var readPDUHeader = regexp.MustCompile(`^\+CMGR: *(\d+),[^,]*,(\d+)$`)

// ReadStoredPDU reads the message at the given index of the currently selected storage according to 27.005 3.4.3
func ReadStoredPDU(ctx context.Context, requester Requester, index int) (StoredPDU, error) {
	responses, err := requester.Request(ctx, fmt.Sprintf("AT+CMGR=%d", index))
	if err != nil {
		return StoredPDU{}, err
	}
	if len(responses) < 2 {
		return StoredPDU{}, fmt.Errorf("no response received")
	}
	parts := readPDUHeader.FindStringSubmatch(strings.ToUpper(strings.TrimSpace(responses[0])))
	if len(parts) != 3 {
		return StoredPDU{}, fmt.Errorf("unexpected response: %s", responses[0])
	}

	stat, _ := strconv.Atoi(parts[1])
	length, _ := strconv.Atoi(parts[2])
	result, err := parseStoredPDU(responses[1], length)
	if err != nil {
		return StoredPDU{}, err
	}
	result.Index = index
	result.Status = MessageStatus(stat)
	return result, nil
}

// parseStoredPDU splits the hex encoded PDU into the SMSC address and the TPDU. The length is the length of the
// TPDU in octets, as reported by the device.
func parseStoredPDU(value string, length int) (StoredPDU, error) {
	bytes, err := tpdu.HexToBinary(value)
	if err != nil {
		return StoredPDU{}, fmt.Errorf("invalid PDU: %w", err)
	}
	if len(bytes) == 0 {
		return StoredPDU{}, fmt.Errorf("empty PDU")
	}

	smscLength := int(bytes[0])
	switch {
	case 1+smscLength+length == len(bytes):
		return StoredPDU{
			SMSC: bytes[1 : 1+smscLength],
			TPDU: bytes[1+smscLength:],
		}, nil
	case length == len(bytes):
		return StoredPDU{TPDU: bytes}, nil
	default:
		return StoredPDU{}, fmt.Errorf("PDU has %d bytes, expected %d bytes of TPDU", len(bytes), length)
	}
}

// Image concatenates the TPDUs of the given messages, separated by the given number of zero bytes.
func Image(pdus []StoredPDU, padding int) []byte {
	if padding < 0 {
		padding = 0
	}
	size := 0
	for _, pdu := range pdus {
		size += len(pdu.TPDU) + padding
	}

	result := make([]byte, 0, size)
	for i, pdu := range pdus {
		if i > 0 {
			result = append(result, make([]byte, padding)...)
		}
		result = append(result, pdu.TPDU...)
	}
	return result
}

// Offsets returns the offset of each message in the image built by Image with the same padding.
func Offsets(pdus []StoredPDU, padding int) []int {
	if padding < 0 {
		padding = 0
	}
	result := make([]int, len(pdus))
	offset := 0
	for i, pdu := range pdus {
		result[i] = offset
		offset += len(pdu.TPDU) + padding
	}
	return result
}
