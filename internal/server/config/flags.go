package config

import (
	"flag"
	"os"
	"time"

	"github.com/dmitrijs2005/berboapp/internal/flagx"
)

var serverFlags = []string{
	"-a", "-ga", "-d", "-s", "-kid", "-k", "-t", "-r",
	"-mfa-ttl", "-reset-ttl", "-account-ttl", "-base",
	"-mail", "-redis", "-images", "-l",
	"-u", "-p", "-b", "-g", "-e",
}

// parseFlags populates server Config fields from command-line flags.
//
// Supported flags:
//
//	-a string        HTTP bind address (e.g., ":8080")
//	-ga string       gRPC health bind address (e.g., ":50051")
//	-d string        PostgreSQL DSN
//	-s string        JWT HMAC secret key
//	-kid string      key id written into new tokens
//	-k kid=secret    extra verification key, repeatable
//	-t int           access token validity, minutes
//	-r int           refresh token validity, minutes
//	-mfa-ttl int     MFA code validity, minutes
//	-reset-ttl int   password reset link validity, minutes
//	-account-ttl int account verification link validity, minutes (0 = no expiry)
//	-base string     public base URL used in emailed links
//	-mail string     mail provider: dev, smtp or postmark
//	-redis string    Redis URL for rate limiting
//	-images string   image store: local or s3
//	-l string        log level
//	-u, -p, -b, -g, -e  S3 user, password, bucket, region, base endpoint
//
// Only recognised flags are taken from os.Args (flagx.FilterArgs), so the
// -c/-config flag used by parseJson does not collide. Durations are given in
// whole minutes.
func parseFlags(config *Config) {
	args := flagx.FilterArgs(os.Args[1:], serverFlags)

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&config.EndpointAddrHTTP, "a", config.EndpointAddrHTTP, "address and port of the HTTP API")
	fs.StringVar(&config.EndpointAddrGRPC, "ga", config.EndpointAddrGRPC, "address and port of the gRPC health endpoint")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.StringVar(&config.SecretKey, "s", config.SecretKey, "secret key")
	fs.StringVar(&config.SigningKeyID, "kid", config.SigningKeyID, "signing key id")

	if config.VerifyKeys == nil {
		config.VerifyKeys = map[string]string{}
	}
	fs.Var(flagx.KeyValues(config.VerifyKeys), "k", "additional verification key as kid=secret")

	accessTTL := fs.Int("t", minutes(config.AccessTokenValidityDuration), "access token validity (in minutes)")
	refreshTTL := fs.Int("r", minutes(config.RefreshTokenValidityDuration), "refresh token validity (in minutes)")
	mfaTTL := fs.Int("mfa-ttl", minutes(config.MFACodeValidityDuration), "mfa code validity (in minutes)")
	resetTTL := fs.Int("reset-ttl", minutes(config.PasswordResetValidityDuration), "password reset link validity (in minutes)")
	accountTTL := fs.Int("account-ttl", minutes(config.AccountVerificationValidityDuration), "account verification link validity (in minutes)")

	fs.StringVar(&config.PublicBaseURL, "base", config.PublicBaseURL, "public base URL")
	fs.StringVar(&config.MailProvider, "mail", config.MailProvider, "mail provider")
	fs.StringVar(&config.RedisURL, "redis", config.RedisURL, "redis URL")
	fs.StringVar(&config.ImageStore, "images", config.ImageStore, "image store")
	fs.StringVar(&config.LogLevel, "l", config.LogLevel, "log level")

	fs.StringVar(&config.S3RootUser, "u", config.S3RootUser, "S3 root user")
	fs.StringVar(&config.S3RootPassword, "p", config.S3RootPassword, "S3 root password")
	fs.StringVar(&config.S3Bucket, "b", config.S3Bucket, "S3 bucket")
	fs.StringVar(&config.S3Region, "g", config.S3Region, "S3 region")
	fs.StringVar(&config.S3BaseEndpoint, "e", config.S3BaseEndpoint, "S3 base endpoint")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	config.AccessTokenValidityDuration = time.Duration(*accessTTL) * time.Minute
	config.RefreshTokenValidityDuration = time.Duration(*refreshTTL) * time.Minute
	config.MFACodeValidityDuration = time.Duration(*mfaTTL) * time.Minute
	config.PasswordResetValidityDuration = time.Duration(*resetTTL) * time.Minute
	config.AccountVerificationValidityDuration = time.Duration(*accountTTL) * time.Minute
}

func minutes(d time.Duration) int {
	return int(d.Minutes())
}
