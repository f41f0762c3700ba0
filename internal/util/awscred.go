// Copyright (c) 2024 Netskope, Inc. All rights reserved.

package util

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
)

// AWS IAM credential file paths (vault-injected in Kubernetes deployments)
const (
	DefaultAWSKeyFile  = "/vault/secrets/awsaccesskey"
	DefaultAWSPassFile = "/vault/secrets/awssecretkey"
)

// StaticKeys are explicitly configured AWS credentials.
type StaticKeys struct {
	AccessKeyID     string
	SecretAccessKey string
	SessionToken    string
}

func (k StaticKeys) set() bool {
	return k.AccessKeyID != "" && k.SecretAccessKey != ""
}

// LoadAWSConfig builds an AWS config with the following priority:
// 1. Static keys from flags or config file
// 2. AWS SDK default chain (environment, shared config, SSO, IAM roles)
// 3. Vault files, only when no credentials are visible in the environment
func LoadAWSConfig(ctx context.Context, region string, keys StaticKeys) (aws.Config, error) {
	opts := []func(*config.LoadOptions) error{}
	if region != "" {
		opts = append(opts, config.WithRegion(region))
	}

	if !keys.set() && os.Getenv("AWS_ACCESS_KEY_ID") == "" {
		keys = vaultKeys(DefaultAWSKeyFile, DefaultAWSPassFile)
	}
	if keys.set() {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(keys.AccessKeyID, keys.SecretAccessKey, keys.SessionToken),
		))
	}

	cfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return aws.Config{}, fmt.Errorf("create AWS config: %w", err)
	}
	return cfg, nil
}

func vaultKeys(keyFile, passFile string) StaticKeys {
	key, err := os.ReadFile(keyFile)
	if err != nil {
		return StaticKeys{}
	}
	pass, err := os.ReadFile(passFile)
	if err != nil {
		return StaticKeys{}
	}
	return StaticKeys{
		AccessKeyID:     strings.TrimSpace(string(key)),
		SecretAccessKey: strings.TrimSpace(string(pass)),
	}
}

// SecretsGetter is the Secrets Manager call used for token lookup.
type SecretsGetter interface {
	GetSecretValue(ctx context.Context, in *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error)
}

// GetTokenFromSecretsManager retrieves the console API token from AWS Secrets Manager.
// The secret may hold the bare token or JSON with an "apiToken" or "token" field.
func GetTokenFromSecretsManager(ctx context.Context, svc SecretsGetter, secretName string) (string, error) {
	if secretName == "" {
		return "", fmt.Errorf("secret name is required for Secrets Manager")
	}

	out, err := svc.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
		SecretId:     aws.String(secretName),
		VersionStage: aws.String("AWSCURRENT"),
	})
	if err != nil {
		return "", fmt.Errorf("get secret value: %w", err)
	}
	if out.SecretString == nil {
		return "", fmt.Errorf("secret string empty for %s", secretName)
	}

	raw := strings.TrimSpace(*out.SecretString)
	if !strings.HasPrefix(raw, "{") {
		if raw == "" {
			return "", fmt.Errorf("secret string empty for %s", secretName)
		}
		return raw, nil
	}

	var payload struct {
		APIToken string `json:"apiToken"`
		Token    string `json:"token"`
	}
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		return "", fmt.Errorf("parse secret json: %w", err)
	}
	if payload.APIToken != "" {
		return payload.APIToken, nil
	}
	if payload.Token != "" {
		return payload.Token, nil
	}
	return "", fmt.Errorf("token field empty in secret %s", secretName)
}

// ResolveAPIToken returns token when set. Otherwise the token is fetched from
// Secrets Manager; newClient is only called in that case.
func ResolveAPIToken(ctx context.Context, token, secretName string, newClient func() (SecretsGetter, error)) (string, error) {
	if token != "" {
		return token, nil
	}
	if secretName == "" {
		return "", fmt.Errorf("no API token or token secret configured")
	}
	svc, err := newClient()
	if err != nil {
		return "", err
	}
	return GetTokenFromSecretsManager(ctx, svc, secretName)
}

// NewSecretsClient returns a Secrets Manager client for the given config.
func NewSecretsClient(cfg aws.Config) SecretsGetter {
	return secretsmanager.NewFromConfig(cfg)
}
