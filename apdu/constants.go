package apdu

// Confirmed service choices (clause 21, the subset named in spec §6
// plus WritePropertyMultiple and AcknowledgeAlarm from the supplement).
const (
	ServiceConfirmedAcknowledgeAlarm        uint8 = 0
	ServiceConfirmedReadProperty            uint8 = 12
	ServiceConfirmedReadPropertyMultiple    uint8 = 14
	ServiceConfirmedWriteProperty           uint8 = 15
	ServiceConfirmedWritePropertyMultiple   uint8 = 16
	ServiceConfirmedSubscribeCOV            uint8 = 5
)

// Unconfirmed service choices.
const (
	ServiceUnconfirmedIAm                  uint8 = 0
	ServiceUnconfirmedIHave                uint8 = 1
	ServiceUnconfirmedCOVNotification      uint8 = 2
	ServiceUnconfirmedEventNotification    uint8 = 3
	ServiceUnconfirmedWhoHas               uint8 = 7
	ServiceUnconfirmedWhoIs                uint8 = 8
)

// Reject reasons (clause 20.1.2.10 / annex).
const (
	RejectOther                      uint8 = 0
	RejectBufferOverflow              uint8 = 1
	RejectInconsistentParameters      uint8 = 2
	RejectInvalidParameterDataType    uint8 = 3
	RejectInvalidTag                  uint8 = 4
	RejectMissingRequiredParameter    uint8 = 5
	RejectParameterOutOfRange         uint8 = 6
	RejectTooManyArguments            uint8 = 7
	RejectUndefinedEnumeration        uint8 = 8
	RejectUnrecognizedService         uint8 = 9
)

// Abort reasons.
const (
	AbortOther                        uint8 = 0
	AbortBufferOverflow                uint8 = 1
	AbortInvalidAPDUInThisState        uint8 = 2
	AbortPreemptedByHigherPriorityTask uint8 = 3
	AbortSegmentationNotSupported      uint8 = 4
	AbortSecurityError                 uint8 = 5
	AbortInsufficientSecurity          uint8 = 6
	AbortWindowSizeOutOfRange          uint8 = 7
	AbortApplicationExceededReplyTime  uint8 = 8
	AbortOutOfResources                uint8 = 9
	AbortTSMTimeout                    uint8 = 10
	AbortAPDUTooLong                   uint8 = 11
)

// Error classes (clause 18.1).
const (
	ErrorClassDevice       uint8 = 0
	ErrorClassObject       uint8 = 1
	ErrorClassProperty     uint8 = 2
	ErrorClassResources    uint8 = 3
	ErrorClassSecurity     uint8 = 4
	ErrorClassServices     uint8 = 5
	ErrorClassVT           uint8 = 6
	ErrorClassCommunication uint8 = 7
)

// Error codes relevant to the property engine and TSM (clause 18.1).
const (
	ErrorCodeOther                uint8 = 0
	ErrorCodeUnknownObject        uint8 = 31
	ErrorCodeUnknownProperty      uint8 = 32
	ErrorCodeInvalidArrayIndex    uint8 = 42
	ErrorCodeInvalidDataType      uint8 = 9
	ErrorCodeWriteAccessDenied    uint8 = 40
	ErrorCodeValueOutOfRange      uint8 = 37
	ErrorCodeNoSpaceToAddListElement uint8 = 45
)
