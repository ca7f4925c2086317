// Package creds provides db3.CredentialsProvider implementations.
//
// Available providers:
//   - Static: fixed credentials from flags or a config file
//   - Env: process environment and dotenv files, including DATABASE_URL
//   - Pgpass: password lookup in a libpq password file (~/.pgpass)
//   - AWSIAM: RDS IAM authentication tokens via the AWS SDK
//   - AzureEntra: Entra ID access tokens for Azure Database for PostgreSQL
//   - GoogleCloudSQL: the Cloud SQL Go Connector with IAM authentication
//   - Caching: expiry-aware memoization around any other provider
//
// The pool manager fetches credentials immediately before every pool
// creation, so token-backed providers hand out rotated tokens without any
// restart. Providers whose String() is logged must never include secrets.
package creds
