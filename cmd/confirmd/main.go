// Command confirmd is the upload-confirmation Lambda. It consumes the SQS
// queue fed by the blob store's object-created notifications and flips the
// matching posts from pending to confirmed.
package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/aws/aws-lambda-go/lambda"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/ilyakaznacheev/cleanenv"

	"github.com/picstream/picstream/notify"
	"github.com/picstream/picstream/post"
	"github.com/picstream/picstream/store"
)

type Config struct {
	PostsTable    string `env:"POSTS_TABLE" env-default:"posts"`
	PostsBucket   string `env:"POSTS_BUCKET" env-default:"picstream-posts"`
	BlobPublicURL string `env:"BLOB_PUBLIC_URL" env-default:"https://s3.amazonaws.com"`
	Workers       int    `env:"CONFIRM_WORKERS" env-default:"4"`
	LogLevel      string `env:"LOG_LEVEL" env-default:"info"`
}

func main() {
	var cfg Config
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		slog.Error("failed to read configuration", "error", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: parseLevel(cfg.LogLevel),
	}))
	slog.SetDefault(logger)

	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background())
	if err != nil {
		logger.Error("failed to load AWS configuration", "error", err)
		os.Exit(1)
	}

	client := store.New(dynamodb.NewFromConfig(awsCfg))

	// The confirmation path never reads or writes blob content, so the
	// post service runs without a blob backend here.
	posts := post.NewService(client, nil, post.Config{
		Table:   cfg.PostsTable,
		Bucket:  cfg.PostsBucket,
		BaseURL: cfg.BlobPublicURL,
	}, logger)

	handler := notify.NewHandler(posts, notify.Config{Workers: cfg.Workers}, logger)

	lambda.Start(handler.HandleSQS)
}

func parseLevel(s string) slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo
	}
	return level
}
