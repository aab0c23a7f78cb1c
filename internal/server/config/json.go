package config

import (
	"encoding/json"
	"os"
	"time"

	"github.com/dmitrijs2005/berboapp/internal/flagx"
	"github.com/dmitrijs2005/berboapp/internal/timex"
)

// JsonConfig is the JSON file shape. Durations use timex.Duration, which
// accepts either strings such as "20m" or integer nanoseconds. Pointer
// durations distinguish "absent" from an explicit zero (no expiry).
//
// After unmarshalling, present fields are copied into the runtime Config.
type JsonConfig struct {
	EndpointAddrHTTP string            `json:"endpoint_addr_http"`
	EndpointAddrGRPC string            `json:"endpoint_addr_grpc"`
	DatabaseDSN      string            `json:"database_dsn"`
	SecretKey        string            `json:"secret_key"`
	SigningKeyID     string            `json:"signing_key_id"`
	VerifyKeys       map[string]string `json:"verify_keys"`

	AccessTokenValidityDuration         *timex.Duration `json:"access_token_validity_duration"`
	RefreshTokenValidityDuration        *timex.Duration `json:"refresh_token_validity_duration"`
	MFACodeValidityDuration             *timex.Duration `json:"mfa_code_validity_duration"`
	PasswordResetValidityDuration       *timex.Duration `json:"password_reset_validity_duration"`
	AccountVerificationValidityDuration *timex.Duration `json:"account_verification_validity_duration"`

	PublicBaseURL        string `json:"public_base_url"`
	MailProvider         string `json:"mail_provider"`
	MailFrom             string `json:"mail_from"`
	SMTPHost             string `json:"smtp_host"`
	SMTPPort             int    `json:"smtp_port"`
	SMTPUser             string `json:"smtp_user"`
	SMTPPassword         string `json:"smtp_password"`
	PostmarkServerToken  string `json:"postmark_server_token"`
	PostmarkAccountToken string `json:"postmark_account_token"`
	DevMailDir           string `json:"dev_mail_dir"`
	MailQueueSize        int    `json:"mail_queue_size"`
	MailWorkers          int    `json:"mail_workers"`
	MailMaxRetries       int    `json:"mail_max_retries"`

	RedisURL          string          `json:"redis_url"`
	RateLimitRequests int             `json:"rate_limit_requests"`
	RateLimitWindow   *timex.Duration `json:"rate_limit_window"`

	ImageStore     string `json:"image_store"`
	ImageDir       string `json:"image_dir"`
	S3RootUser     string `json:"s3_root_user"`
	S3RootPassword string `json:"s3_root_password"`
	S3Bucket       string `json:"s3_bucket"`
	S3Region       string `json:"s3_region"`
	S3BaseEndpoint string `json:"s3_base_endpoint"`

	LogLevel string `json:"log_level"`
}

// parseJson loads configuration values from the JSON file named by the -c or
// -config flag. Without either flag nothing is loaded. Only fields present in
// the file override the current values. It panics if the file cannot be read
// or contains invalid JSON.
func parseJson(config *Config) {
	jsonConfigFile := flagx.JsonConfigFlags()
	if jsonConfigFile == "" {
		return
	}

	c := &JsonConfig{}

	file, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}

	if err := json.Unmarshal(file, c); err != nil {
		panic(err)
	}

	c.apply(config)
}

func (c *JsonConfig) apply(config *Config) {
	setString(&config.EndpointAddrHTTP, c.EndpointAddrHTTP)
	setString(&config.EndpointAddrGRPC, c.EndpointAddrGRPC)
	setString(&config.DatabaseDSN, c.DatabaseDSN)
	setString(&config.SecretKey, c.SecretKey)
	setString(&config.SigningKeyID, c.SigningKeyID)
	if len(c.VerifyKeys) > 0 {
		if config.VerifyKeys == nil {
			config.VerifyKeys = map[string]string{}
		}
		for kid, secret := range c.VerifyKeys {
			config.VerifyKeys[kid] = secret
		}
	}

	setDuration(&config.AccessTokenValidityDuration, c.AccessTokenValidityDuration)
	setDuration(&config.RefreshTokenValidityDuration, c.RefreshTokenValidityDuration)
	setDuration(&config.MFACodeValidityDuration, c.MFACodeValidityDuration)
	setDuration(&config.PasswordResetValidityDuration, c.PasswordResetValidityDuration)
	setDuration(&config.AccountVerificationValidityDuration, c.AccountVerificationValidityDuration)

	setString(&config.PublicBaseURL, c.PublicBaseURL)
	setString(&config.MailProvider, c.MailProvider)
	setString(&config.MailFrom, c.MailFrom)
	setString(&config.SMTPHost, c.SMTPHost)
	setInt(&config.SMTPPort, c.SMTPPort)
	setString(&config.SMTPUser, c.SMTPUser)
	setString(&config.SMTPPassword, c.SMTPPassword)
	setString(&config.PostmarkServerToken, c.PostmarkServerToken)
	setString(&config.PostmarkAccountToken, c.PostmarkAccountToken)
	setString(&config.DevMailDir, c.DevMailDir)
	setInt(&config.MailQueueSize, c.MailQueueSize)
	setInt(&config.MailWorkers, c.MailWorkers)
	setInt(&config.MailMaxRetries, c.MailMaxRetries)

	setString(&config.RedisURL, c.RedisURL)
	setInt(&config.RateLimitRequests, c.RateLimitRequests)
	setDuration(&config.RateLimitWindow, c.RateLimitWindow)

	setString(&config.ImageStore, c.ImageStore)
	setString(&config.ImageDir, c.ImageDir)
	setString(&config.S3RootUser, c.S3RootUser)
	setString(&config.S3RootPassword, c.S3RootPassword)
	setString(&config.S3Bucket, c.S3Bucket)
	setString(&config.S3Region, c.S3Region)
	setString(&config.S3BaseEndpoint, c.S3BaseEndpoint)

	setString(&config.LogLevel, c.LogLevel)
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setInt(dst *int, v int) {
	if v != 0 {
		*dst = v
	}
}

func setDuration(dst *time.Duration, v *timex.Duration) {
	if v != nil {
		*dst = v.Duration
	}
}
