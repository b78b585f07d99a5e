package shared

import "time"

// HTTP Client Configuration
const (
	DefaultHTTPTimeout     = 180 * time.Second
	DefaultDialTimeout     = 5 * time.Second
	DefaultTLSTimeout      = 5 * time.Second
	DefaultShutdownTimeout = 30 * time.Second
)

// Relay names, used as metric labels and in logs
const (
	RelayProcessForm = "process-form"
	RelayTranscribe  = "transcribe"
	RelayChat        = "chat"
)

// Transcription upload. The mobile client always records m4a.
const (
	AudioFileName    = "audio.m4a"
	AudioContentType = "audio/m4a"
	AudioMIMEPrefix  = "audio/"
	ImageMIMEPrefix  = "image/"
)

// CORS
const (
	CORSAllowOrigin  = "*"
	CORSAllowHeaders = "authorization, x-client-info, apikey, content-type"
	CORSAllowMethods = "POST, OPTIONS"
)

const (
	RequestIDAlphabet = "0123456789abcdefghijklmnopqrstuvwxyz"
	RequestIDLength   = 28
	ClientInfoHeader  = "X-Client-Info"
)
