package config

import (
	"io/fs"
	"time"
)

// -----------------------------------------------------------------------------
// Build Information
// -----------------------------------------------------------------------------

// Build variables are injected via -ldflags.
var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

// UserAgent identifies the HTTP client.
var UserAgent = "Go-Birthday/" + Version

// -----------------------------------------------------------------------------
// Application Constants
// -----------------------------------------------------------------------------

const (
	AppName           = "Go Birthday"
	AppID             = "com.github.tartampluch.go-birthday"
	KeyringService    = "com.github.tartampluch.go-birthday"
	LocalhostBindAddr = "127.0.0.1"
	LogFileName       = "app.log"
	SettingsFileName  = "settings.yaml"
	StoreFileName     = "persons.db"
	DotEnvFileName    = ".env"
	EnvPrefix         = "GOBIRTHDAY"
)

// -----------------------------------------------------------------------------
// Exit Codes
// -----------------------------------------------------------------------------

const (
	ExitCodeSuccess = 0
	ExitCodeError   = 1
)

// -----------------------------------------------------------------------------
// System & File Permissions
// -----------------------------------------------------------------------------

const (
	// FilePermUserRW represents -rw------- (Read/Write for owner only).
	// Used for sensitive files like logs and the persons database.
	FilePermUserRW fs.FileMode = 0600

	// DirPermUserRWX represents drwx------ (Read/Write/Exec for owner only).
	DirPermUserRWX fs.FileMode = 0700

	// ChannelBufferSize defines the standard buffer size for internal signaling channels.
	ChannelBufferSize = 1
)

// -----------------------------------------------------------------------------
// CLI Commands, Flags & Descriptions
// -----------------------------------------------------------------------------

const (
	CmdRoot        = "go-birthday"
	CmdRun         = "run"
	CmdPlan        = "plan"
	CmdImport      = "import"
	CmdCredentials = "credentials"
	CmdSet         = "set"
	CmdPerson      = "person"
	CmdAdd         = "add"
	CmdList        = "list"
	CmdDelete      = "delete"

	FlagConfig  = "config"
	FlagDebug   = "debug"
	FlagFormat  = "format"
	FlagLimit   = "limit"
	FlagConfirm = "confirm"
	FlagUser    = "user"

	FlagName       = "name"
	FlagBirthday   = "birthday"
	FlagDaysBefore = "days-before"
	FlagChannel    = "channel"
	FlagTime       = "time"

	FlagDescConfig  = "Path to the settings file (YAML)"
	FlagDescDebug   = "Enable debug logging to stdout"
	FlagDescFormat  = "Output format (text|json)"
	FlagDescLimit   = "Maximum number of plan entries to print (0 = all)"
	FlagDescConfirm = "Also merge duplicates matched by name only"
	FlagDescUser    = "Account name the password belongs to"

	FlagDescName       = "Display name of the person"
	FlagDescBirthday   = "Birthday as YYYY-MM-DD, or --MM-DD when the year is unknown"
	FlagDescDaysBefore = "Days before the birthday the reminder fires (default from settings)"
	FlagDescChannel    = "Reminder channel: notification, alarm, email, sms, whatsapp or signal (default from settings)"
	FlagDescTime       = "Reminder time of day as HH:MM (default from settings)"

	DescRoot        = "Birthday reminder scheduler"
	DescRun         = "Run the scheduler, dispatch reminders and serve the calendar feed"
	DescPlan        = "Print the upcoming reminder plan"
	DescImport      = "Import persons from the configured contact source"
	DescCredentials = "Manage stored credentials"
	DescSet         = "Store the contact source password in the OS keyring (read from stdin)"
	DescPerson      = "Manage stored persons"
	DescPersonAdd   = "Add a person with one reminder"
	DescPersonList  = "List stored persons"
	DescPersonDel   = "Delete a person and its reminders"

	FormatText = "text"
	FormatJSON = "json"

	MsgVersionOutput = "%s version %s (%s/%s)\n"

	PlanHeader      = "FIRE AT\tNAME\tCHANNEL\tDAYS BEFORE\tKEY"
	PlanRowFormat   = "%s\t%s\t%s\t%d\t%s\n"
	PlanEmpty       = "No reminders planned."
	ImportSummary   = "Added: %d, merged: %d, pending: %d, conflicts: %d\n"
	ImportRowFormat = "%s\t%s\t%s\t%s\n"
	ImportPending   = "pending"
	ImportConflict  = "conflict"
	PersonHeader    = "ID\tNAME\tBIRTHDAY\tREMINDERS"
	PersonRowFormat = "%s\t%s\t%s\t%d\n"
	PersonEmpty     = "No persons stored."
	PersonSaved     = "Saved person %s\n"
	PersonDeleted   = "Deleted person %s\n"
	TabMinWidth     = 0
	TabWidth        = 8
	TabPadding      = 2
)

// ValidFormats defines the allowed CLI output formats.
var ValidFormats = []string{FormatText, FormatJSON}

// -----------------------------------------------------------------------------
// Translation Keys (I18n)
// -----------------------------------------------------------------------------

const (
	TKeyNotifTitle     = "notif_title"      // Requires Name
	TKeyNotifBodyToday = "notif_body_today" // Requires Name
	TKeyNotifBodyDays  = "notif_body_days"  // Requires Name, Count (plural)
	TKeyMsgSubject     = "msg_subject"      // Requires Name
	TKeyMsgGreeting    = "msg_greeting"     // Requires Name
	TKeyMsgAgeLine     = "msg_age_line"     // Requires Name, Age
	TKeyFeedSummary    = "feed_summary"     // Requires Name, Channel

	// TKeyCustomTemplate is the message ID used for user supplied templates.
	// It must never exist in a locale file so the default message is always used.
	TKeyCustomTemplate = "custom_template"
)

// SupportedLanguages defines the list of available languages (ISO 639-1).
var SupportedLanguages = []string{"en", "fr"}

// -----------------------------------------------------------------------------
// Default Values & Business Logic
// -----------------------------------------------------------------------------

const (
	SourceModeWeb   = "web"
	SourceModeLocal = "local"

	StoreDriverMemory = "memory"
	StoreDriverSQLite = "sqlite"

	DefaultPort              = "18080"
	DefaultLanguage          = "en"
	DefaultLeapYear          = 2000 // Leap year fallback for dates like --02-29
	DefaultRecomputeInterval = 15 * time.Minute
	MinRecomputeInterval     = 1 * time.Minute
	DefaultDispatchTimeout   = 5 * time.Second
	DefaultDispatchWorkers   = 4
	DefaultSQLiteBusyTimeout = 1 * time.Second
	SettingsDebounce         = 250 * time.Millisecond

	// MaxReminderSlots bounds the number of reminders a person may carry.
	MaxReminderSlots = 3
	// MaxDaysBefore bounds a reminder's lead time at the edit boundary.
	MaxDaysBefore = 365
	// MinutesPerDay bounds a method's time-of-day (exclusive).
	MinutesPerDay = 24 * 60

	DefaultReminderDays    = 1
	DefaultReminderChannel = "notification"
	DefaultReminderTime    = "09:00"
	TimeOfDayLayout        = "15:04"

	// OmitYearSentinel is the year birthday calendars use when the year is unknown.
	OmitYearSentinel = 1604

	UIDSalt = "go-birthday-v1-" // Salt for deterministic origin id generation
)

// -----------------------------------------------------------------------------
// Standards: iCalendar & vCard
// -----------------------------------------------------------------------------

const (
	// iCal Properties
	ICalVersion   = "2.0"
	ICalProdid    = "-//Go Birthday//Reminders//EN"
	ICalCalName   = "Birthday Reminders"
	ICalMethod    = "PUBLISH"
	ICalScale     = "GREGORIAN"
	ICalComponent = "VALARM"
	ICalAction    = "DISPLAY"
	ICalDomain    = "gobirthday"
	ICalTriggerAt = "PT0S"
	ICalYearly    = "FREQ=YEARLY"

	// iCal/vCard Fields
	PropUID         = "UID"
	PropSummary     = "SUMMARY"
	PropDTStart     = "DTSTART"
	PropDTStamp     = "DTSTAMP"
	PropRefresh     = "REFRESH-INTERVAL"
	PropAction      = "ACTION"
	PropDescription = "DESCRIPTION"
	PropTrigger     = "TRIGGER"
	PropVersion     = "VERSION"
	PropProdid      = "PRODID"
	PropXWRCalName  = "X-WR-CALNAME"
	PropCalScale    = "CALSCALE"
	PropMethod      = "METHOD"
	PropCategories  = "CATEGORIES"
	PropRRule       = "RRULE"
	ParamOmitYear   = "X-APPLE-OMIT-YEAR"
	ParamValue      = "VALUE"
	ValueDate       = "DATE"

	VCardBDAY = "BDAY"
	VCardFN   = "FN"
	VCardUID  = "UID"

	DefaultICalRefresh = 1 * time.Hour
)

// -----------------------------------------------------------------------------
// Data Formats & Limits
// -----------------------------------------------------------------------------

const (
	// Date layouts used for parsing vCard BDAY and iCalendar DTSTART fields
	DateFormatFullDash  = "2006-01-02"
	DateFormatFullBasic = "20060102"
	DateFormatRFC3339   = time.RFC3339
	DateFormatFullT     = "2006-01-02T15:04:05Z"
	DateFormatNoYearD   = "--01-02"
	DateFormatNoYearB   = "--0102"
	DateFormatDisplay   = "2006-01-02 15:04 MST"
	FormatNoYear        = "--%02d-%02d"
	FormatFullDate      = "%04d-%02d-%02d"

	// Limits
	MinPort = 1
	MaxPort = 65535

	// UID Generation
	UIDHashLength   = 16
	FormatHashInput = "%s|%s|%s"
	FormatUID       = "%s-%d@%s"
	FormatPlanKey   = "%s/%d/%s"
)

// -----------------------------------------------------------------------------
// Network & Timeouts
// -----------------------------------------------------------------------------

const (
	HTTPTimeout         = 30 * time.Second
	ShutdownTimeout     = 5 * time.Second
	ServerReadTimeout   = 10 * time.Second
	ServerWriteTimeout  = 30 * time.Second
	ServerIdleTimeout   = 60 * time.Second
	RetryAfterSeconds   = "10"
	AllowedMethods      = "GET, HEAD"
	MaxHTTPResponseSize = 256 * 1024 * 1024 // 256MB
	SchemeHTTP          = "http"
	SchemeHTTPS         = "https"
	RouteRoot           = "/"
	RouteCalendar       = "/calendar.ics"
	RouteDue            = "/due"
	RoutePlan           = "/plan"
	AddrSeparator       = ":"
)

// -----------------------------------------------------------------------------
// HTTP Headers & MIME Types
// -----------------------------------------------------------------------------

const (
	HeaderContentType     = "Content-Type"
	HeaderCacheControl    = "Cache-Control"
	HeaderETag            = "ETag"
	HeaderLastModified    = "Last-Modified"
	HeaderRetryAfter      = "Retry-After"
	HeaderAllow           = "Allow"
	HeaderXContentType    = "X-Content-Type-Options"
	HeaderUserAgent       = "User-Agent"
	HeaderAccept          = "Accept"
	HeaderIfNoneMatch     = "If-None-Match"
	HeaderIfModifiedSince = "If-Modified-Since"

	MimeTextCalendar    = "text/calendar; charset=utf-8"
	MimeJSON            = "application/json; charset=utf-8"
	MimeContacts        = "text/vcard, text/calendar;q=0.9, */*;q=0.1"
	MimeVCard           = "text/vcard, text/x-vcard;q=0.9, */*;q=0.1"
	MimeCalendar        = "text/calendar, */*;q=0.1"
	ExtICS              = ".ics"
	ExtVCF              = ".vcf"
	MimeNoSniff         = "nosniff"
	CacheControlPrivate = "private, no-cache"
	CacheControlNoStore = "no-store"

	// FormatETag expects a string argument.
	FormatETag = `"%s"`
)

// -----------------------------------------------------------------------------
// Error Messages (Technical/Logs)
// -----------------------------------------------------------------------------

const (
	ErrLocalPathEmpty    = "configuration error: local path is empty"
	ErrWebURLEmpty       = "configuration error: web URL is empty"
	ErrFetcherMissing    = "internal error: network fetcher is not initialized"
	ErrModeUnsupport     = "configuration error: unsupported source mode"
	ErrServerStartup     = "server startup failed"
	ErrServerShutdown    = "server shutdown failed"
	ErrPortRequired      = "server port is required"
	ErrPortNumber        = "server port must be a number"
	ErrPortRange         = "server port must be between 1 and 65535"
	ErrInvalidURL        = "invalid URL structure"
	ErrProtocol          = "unsupported protocol scheme (http/https only)"
	ErrICalParse         = "failed to parse iCalendar stream"
	ErrICalEncode        = "failed to encode iCalendar data"
	ErrDateParse         = "unable to parse date"
	ErrLogFile           = "failed to open log file"
	ErrCacheDir          = "could not determine user cache dir"
	ErrCreateDir         = "could not create app cache dir"
	ErrAppFailed         = "application failed unexpectedly"
	ErrWriteResp         = "failed to write response body"
	ErrLocalesAccess     = "failed to access embedded locales"
	ErrLocaleLoad        = "failed to load locale file"
	ErrSettingsRead      = "failed to read settings file"
	ErrSettingsParse     = "failed to parse settings file"
	ErrSettingsEnv       = "failed to apply environment overrides"
	ErrInvalidSettings   = "invalid settings"
	ErrTimezone          = "unknown timezone"
	ErrLanguage          = "unsupported language"
	ErrStoreDriver       = "unknown store driver"
	ErrStorePath         = "store path is required for the sqlite driver"
	ErrStoreOpen         = "failed to open persons store"
	ErrStoreDecode       = "failed to decode stored person"
	ErrInterval          = "recompute interval is too short"
	ErrDispatchTimeout   = "dispatch timeout must be positive"
	ErrDispatchWorkers   = "dispatch concurrency must be positive"
	ErrPersonNotFound    = "person not found"
	ErrBirthdayInvalid   = "birthday is not a valid calendar date"
	ErrTooManyReminders  = "too many reminder slots"
	ErrDaysBefore        = "days before is out of range"
	ErrTimeOfDay         = "time of day is out of range"
	ErrChannelKind       = "channel does not belong to this method kind"
	ErrChannelDuplicate  = "channel configured twice in the same reminder"
	ErrChannelUnknown    = "unknown channel"
	ErrReminderChannel   = "default reminder channel is required"
	ErrNameRequired      = "a name is required"
	ErrRecomputeBusy     = "recompute already in progress"
	ErrNoDispatcher      = "no dispatcher configured for this channel kind"
	ErrPayloadMismatch   = "plan entry payload does not match its channel kind"
	ErrUnknownKind       = "unknown method kind"
	ErrContactsFetch     = "failed to read contact source"
	ErrCredentialsRead   = "failed to read password"
	ErrCredentialsStore  = "failed to store password"
	ErrInvalidFormat     = "invalid output format"
	ErrPasswordEmpty     = "password is empty"
	ErrPasswordInput     = "failed to read password from input"
	ErrUserRequired      = "account name is required (--user or contacts.web_user)"
	ErrPersonsList       = "failed to list persons"
	ErrPersonSave        = "failed to save person"
	ErrPersonDelete      = "failed to delete person"
	ErrWatchSettings     = "settings watcher failed"
	ErrTemplateCustomBad = "custom template failed to render"
	ErrReminderSlot      = "invalid reminder slot"
	ErrFetchRequest      = "failed to create request"
	ErrFetchNetwork      = "network error during fetch"
	ErrFetchStatus       = "server returned unexpected status"
	ErrFetchAuth         = "server rejected the credentials"
	ErrResponseTooLarge  = "response exceeds the size limit"
)

// -----------------------------------------------------------------------------
// HTTP Server Responses
// -----------------------------------------------------------------------------

const (
	HTTPMsgInitializing = "Calendar initializing, please try again shortly."
	HTTPMsgMethodNotAll = "Method Not Allowed"
	HTTPMsgInternalErr  = "Internal Server Error"
	HTTPMsgNoDueSource  = "Due entries are not available."
)

// -----------------------------------------------------------------------------
// Fallbacks & Defaults
// -----------------------------------------------------------------------------

const (
	FallbackTitle     = "Birthday: %s"
	FallbackBodyToday = "%s has a birthday today."
	FallbackBodyDays  = "%s's birthday is in %d day(s)."
	FallbackSubject   = "Happy birthday, %s!"
	FallbackGreeting  = "Happy birthday, %s!"
	FallbackAgeLine   = "Congratulations on turning %d!"
	FallbackSummary   = "Birthday: %s (%s)"
	FallbackName      = "Unknown"

	// StubVCalendar is the minimal valid iCalendar object used when no entries are planned.
	StubVCalendar = "BEGIN:VCALENDAR\r\nVERSION:2.0\r\nPRODID:" + ICalProdid + "\r\nEND:VCALENDAR\r\n"

	MsgAppStarting      = "Starting application"
	MsgAppStop          = "Application stopped gracefully"
	MsgWorkerStart      = "Background worker started"
	MsgWorkerStop       = "Worker stopping due to context cancellation"
	MsgUpdateInterval   = "Updating recompute interval"
	MsgRecomputeDone    = "Schedule recomputed"
	MsgRecomputeFailed  = "Schedule recompute failed"
	MsgPlanBuilt        = "Person plan built"
	MsgFeedBuilt        = "Calendar feed built"
	MsgSlotIgnored      = "Ignoring reminder slot beyond the supported bound"
	MsgMethodSkipped    = "Skipping method with mismatched channel"
	MsgMethodDuplicate  = "Skipping duplicate channel in reminder"
	MsgNegativeDays     = "Skipping reminder with negative days before"
	MsgInvalidBirthday  = "Skipping person with invalid birthday"
	MsgDispatchApplied  = "Dispatch diff applied"
	MsgDispatchFailed   = "Dispatch failed, will retry on next recompute"
	MsgDispatchDeferred = "Create deferred until cancel succeeds"
	MsgExternalPending  = "External entry pending presentation"
	MsgExternalDue      = "External entries due"
	MsgLocalFired       = "Local reminder fired"
	MsgLocalArmed       = "Local reminder armed"
	MsgLocalDeferred    = "Local reminder left to the running scheduler"
	MsgTimezoneChange   = "Timezone changed, recomputing schedule"
	MsgLanguageChange   = "Language changed"
	MsgSettingsReload   = "Settings reloaded"
	MsgSettingsSkip     = "Settings unchanged; skipping reload"
	MsgSettingsBad      = "Settings reload rejected"
	MsgStoreOpen        = "Opening persons store"
	MsgSkippedCard      = "Skipping malformed vCard"
	MsgSkippedDate      = "Skipping invalid date format"
	MsgSkippedEvent     = "Skipping non-birthday calendar event"
	MsgContactsRead     = "Contact source read"
	MsgFetchStart       = "Initiating download"
	MsgFetchBadStatus   = "Server returned error status"
	MsgFetchDownloading = "Downloading contact data"
	MsgFetchDone        = "Download finished"
	MsgImportDone       = "Import finished"
	MsgServerListen     = "HTTP server listening"
	MsgServerStop       = "Shutting down HTTP server..."
	MsgCacheUpdated     = "Calendar cache updated"
	MsgLocaleSkip       = "Skipping non-locale file"
	MsgLocaleBadName    = "Skipping malformed locale filename"
	MsgLocaleLoaded     = "Locale loaded successfully"
	MsgTransMissing     = "Missing translation key"
	MsgPassFail         = "Password retrieval failed (might be empty)"
	MsgLogWarning       = "Warning: %s at %s: %v\n"
	MsgPasswordPrompt   = "Password: "
	MsgPasswordStored   = "Password stored for %s\n"
	MsgWatchDisabled    = "Settings watcher disabled"
)

// -----------------------------------------------------------------------------
// Structured Logging Keys (slog)
// -----------------------------------------------------------------------------

const (
	LogKeyComponent = "component"
	LogKeyError     = "error"
	LogKeyURL       = "url"
	LogKeyStatus    = "status_code"
	LogKeyFile      = "file"
	LogKeyLang      = "lang"
	LogKeyKey       = "key"
	LogKeyPort      = "port"
	LogKeyInterval  = "interval"
	LogKeyOld       = "old"
	LogKeyNew       = "new"
	LogKeyUser      = "user"
	LogKeySizeBytes = "size_bytes"
	LogKeyETag      = "etag"
	LogKeyValue     = "value"
	LogKeyCount     = "count"
	LogKeyDuration  = "duration_ms"
	LogKeyPerson    = "person_id"
	LogKeySlot      = "slot"
	LogKeyChannel   = "channel"
	LogKeyFireAt    = "fire_at"
	LogKeyOp        = "op"
	LogKeyPersons   = "persons"
	LogKeyEntries   = "entries"
	LogKeyCancel    = "to_cancel"
	LogKeyCreate    = "to_create"
	LogKeyFailures  = "failures"
	LogKeyTimezone  = "timezone"
	LogKeyPath      = "path"
	LogKeyDriver    = "driver"
	LogKeyAdded     = "added"
	LogKeyMerged    = "merged"
	LogKeyPending   = "pending"
	LogKeyConflicts = "conflicts"
	LogKeyTitle     = "title"
	LogKeyBody      = "body"

	// Startup Info Keys
	LogKeyBuild   = "build"
	LogKeyApp     = "app"
	LogKeyVersion = "version"
	LogKeyCommit  = "commit"
	LogKeyDate    = "date"
	LogKeyGoVer   = "go_version"
	LogKeyEnv     = "env"
	LogKeyOS      = "os"
	LogKeyArch    = "arch"
	LogKeyPID     = "pid"
)

// -----------------------------------------------------------------------------
// Log Components
// -----------------------------------------------------------------------------

const (
	CompEngine   = "engine"
	CompPlanner  = "planner"
	CompDispatch = "dispatch"
	CompTimer    = "timer"
	CompServer   = "server"
	CompFetcher  = "fetcher"
	CompContacts = "contacts"
	CompWorker   = "worker"
	CompMain     = "main"
	CompI18n     = "i18n"
	CompStore    = "store"
	CompSettings = "settings"
	CompApp      = "app"
	CompImport   = "import"
	CompCLI      = "cli"
)
