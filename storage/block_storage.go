package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/sirupsen/logrus"

	"github.com/vultisig/multisig-demo/config"
	"github.com/vultisig/multisig-demo/internal/types"
)

// BlockStorage archives run reports to an S3 compatible bucket.
type BlockStorage struct {
	bucket   string
	s3Client *s3.S3
	logger   *logrus.Logger
}

func NewBlockStorage(cfg config.Config, logger *logrus.Logger) (*BlockStorage, error) {
	awsCfg := &aws.Config{
		Region:           aws.String(cfg.BlockStorage.Region),
		Credentials:      credentials.NewStaticCredentials(cfg.BlockStorage.AccessKey, cfg.BlockStorage.SecretKey, ""),
		S3ForcePathStyle: aws.Bool(true),
	}
	if cfg.BlockStorage.Host != "" {
		awsCfg.Endpoint = aws.String(cfg.BlockStorage.Host)
	}
	sess, err := session.NewSession(awsCfg)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &BlockStorage{
		bucket:   cfg.BlockStorage.Bucket,
		s3Client: s3.New(sess),
		logger:   logger,
	}, nil
}

func (bs *BlockStorage) UploadFile(ctx context.Context, fileContent []byte, fileName string) error {
	bs.logger.WithFields(logrus.Fields{
		"file":   fileName,
		"bucket": bs.bucket,
		"length": len(fileContent),
	}).Info("upload file")
	output, err := bs.s3Client.PutObjectWithContext(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(bs.bucket),
		Key:           aws.String(fileName),
		Body:          aws.ReadSeekCloser(bytes.NewReader(fileContent)),
		ContentLength: aws.Int64(int64(len(fileContent))),
		ContentType:   aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("fail to upload %s: %w", fileName, err)
	}
	if output != nil && output.VersionId != nil {
		bs.logger.Infof("upload file %s success, version id: %s", fileName, aws.StringValue(output.VersionId))
	}
	return nil
}

func (bs *BlockStorage) GetFile(ctx context.Context, fileName string) ([]byte, error) {
	output, err := bs.s3Client.GetObjectWithContext(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bs.bucket),
		Key:    aws.String(fileName),
	})
	if err != nil {
		return nil, fmt.Errorf("fail to get %s: %w", fileName, err)
	}
	defer func() {
		if err := output.Body.Close(); err != nil {
			bs.logger.Error(err)
		}
	}()
	return io.ReadAll(output.Body)
}

// ArchiveRun uploads the record as indented JSON under its report name.
func (bs *BlockStorage) ArchiveRun(ctx context.Context, record *types.RunRecord) error {
	content, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return fmt.Errorf("fail to marshal run record: %w", err)
	}
	return bs.UploadFile(ctx, content, record.ReportName())
}
