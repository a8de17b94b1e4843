package main

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/hupe1980/gbcore"
	"github.com/hupe1980/gbcore/blobstore"
	"github.com/hupe1980/gbcore/blobstore/minio"
	"github.com/hupe1980/gbcore/blobstore/s3"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	logLevelFlag    = "log-level"
	memoryLimitFlag = "memory-limit"
	ioLimitFlag     = "io-limit"
	storeFlag       = "store"
	dirFlag         = "dir"
	bucketFlag      = "bucket"
	prefixFlag      = "prefix"
	endpointFlag    = "endpoint"
	regionFlag      = "region"
	accessKeyFlag   = "access-key"
	secretKeyFlag   = "secret-key"
	insecureFlag    = "insecure"
	commitTableFlag = "commit-table"
)

// newRootCommand wires every subcommand to one viper instance. Values come
// from flags, then GBCORE_* environment variables, then defaults.
func newRootCommand() *cobra.Command {
	v := viper.New()
	v.SetEnvPrefix("GBCORE")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	root := &cobra.Command{
		Use:           "gbcore",
		Short:         "Deferred-mutation sparse-matrix storage core",
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	flags := root.PersistentFlags()
	flags.String(logLevelFlag, "warn", "log level (debug, info, warn, error)")
	flags.Int64(memoryLimitFlag, 0, "matrix storage limit in bytes (0 = unlimited)")
	flags.Int64(ioLimitFlag, 0, "snapshot IO limit in bytes per second (0 = unlimited)")
	flags.String(storeFlag, "local", "blob store backend (local, s3, minio)")
	flags.String(dirFlag, "", "root directory of the local blob store")
	flags.String(bucketFlag, "", "bucket of the s3 or minio blob store")
	flags.String(prefixFlag, "", "key prefix inside the bucket")
	flags.String(endpointFlag, "", "endpoint of an S3-compatible service")
	flags.String(regionFlag, "", "AWS region override")
	flags.String(accessKeyFlag, "", "minio access key")
	flags.String(secretKeyFlag, "", "minio secret key")
	flags.Bool(insecureFlag, false, "talk plain HTTP to minio")
	flags.String(commitTableFlag, "", "DynamoDB table holding the CURRENT pointer of the s3 store")
	flags.VisitAll(func(f *pflag.Flag) {
		mustBindPFlag(v, f.Name, f)
	})

	root.AddCommand(newDemoCommand(v))
	root.AddCommand(newInspectCommand(v))
	return root
}

func mustBindPFlag(v *viper.Viper, key string, flag *pflag.Flag) {
	if err := v.BindPFlag(key, flag); err != nil {
		panic("failed to bind pflag: " + err.Error())
	}
}

func newRuntime(v *viper.Viper, cmd *cobra.Command) (*gbcore.Runtime, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(v.GetString(logLevelFlag))); err != nil {
		return nil, fmt.Errorf("invalid %s: %w", logLevelFlag, err)
	}
	logger := gbcore.NewLogger(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))
	return gbcore.Init(
		gbcore.WithLogger(logger),
		gbcore.WithMemoryLimit(v.GetInt64(memoryLimitFlag)),
		gbcore.WithIOLimit(v.GetInt64(ioLimitFlag)),
	)
}

func openStore(ctx context.Context, v *viper.Viper) (blobstore.BlobStore, error) {
	switch kind := v.GetString(storeFlag); kind {
	case "local":
		dir := v.GetString(dirFlag)
		if dir == "" {
			return nil, fmt.Errorf("--%s is required for the local store", dirFlag)
		}
		return blobstore.NewLocalStore(dir)
	case "s3":
		bucket := v.GetString(bucketFlag)
		if bucket == "" {
			return nil, fmt.Errorf("--%s is required for the s3 store", bucketFlag)
		}
		opts := []func(*s3.Options){s3.WithPrefix(v.GetString(prefixFlag))}
		if r := v.GetString(regionFlag); r != "" {
			opts = append(opts, s3.WithRegion(r))
		}
		if e := v.GetString(endpointFlag); e != "" {
			opts = append(opts, s3.WithEndpoint(e, true))
		}
		if table := v.GetString(commitTableFlag); table != "" {
			return s3.NewWithCommits(ctx, bucket, table, opts...)
		}
		return s3.New(ctx, bucket, opts...)
	case "minio":
		return minio.New(ctx, minio.Config{
			Endpoint:     v.GetString(endpointFlag),
			AccessKey:    v.GetString(accessKeyFlag),
			SecretKey:    v.GetString(secretKeyFlag),
			Secure:       !v.GetBool(insecureFlag),
			Bucket:       v.GetString(bucketFlag),
			Prefix:       v.GetString(prefixFlag),
			CreateBucket: true,
		})
	default:
		return nil, fmt.Errorf("unknown store %q", kind)
	}
}
