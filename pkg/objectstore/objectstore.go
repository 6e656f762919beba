// Package objectstore manages the pipeline's S3 buckets and image transfer.
package objectstore

import (
	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"
	"github.com/aws/aws-sdk-go/service/s3/s3manager/s3manageriface"
	"github.com/pkg/errors"
)

// ObjectStore manages the Amazon S3 buckets backing the pipeline.
type ObjectStore struct {
	session *session.Session

	client     s3iface.S3API
	uploader   s3manageriface.UploaderAPI
	downloader s3manageriface.DownloaderAPI

	waitForCompletion bool
}

// Option configures an ObjectStore.
type Option interface {
	apply(*ObjectStore)
}

type waitForCompletion bool

func (o waitForCompletion) apply(s *ObjectStore) { s.waitForCompletion = bool(o) }

// WaitForCompletion makes bucket operations block until S3 reports them done.
func WaitForCompletion(wait bool) Option { return waitForCompletion(wait) }

// New returns an ObjectStore backed by the given session.
func New(sess *session.Session, opts ...Option) *ObjectStore {
	s := &ObjectStore{
		session: sess,

		client:     s3.New(sess),
		uploader:   s3manager.NewUploader(sess),
		downloader: s3manager.NewDownloader(sess),
	}

	for _, o := range opts {
		o.apply(s)
	}

	return s
}

// CreateBucket creates a new bucket in the object store.
func (s *ObjectStore) CreateBucket(bucketName string) error {
	input := &s3.CreateBucketInput{
		Bucket: aws.String(bucketName),
	}

	_, err := s.client.CreateBucket(input)
	if err != nil {
		if awsErr, ok := err.(awserr.Error); ok {
			switch awsErr.Code() {
			case s3.ErrCodeBucketAlreadyExists, s3.ErrCodeBucketAlreadyOwnedByYou:
				err = errBucketAlreadyExists{}
			}
		}

		return errors.Wrap(err, "bucket creation failed")
	}

	if s.waitForCompletion {
		err := s.client.WaitUntilBucketExists(&s3.HeadBucketInput{
			Bucket: aws.String(bucketName),
		})
		if err != nil {
			return errors.Wrap(err, "could not wait for bucket to be ready")
		}
	}

	return nil
}

// EnsureBucket creates the bucket unless it already exists.
func (s *ObjectStore) EnsureBucket(bucketName string) error {
	err := s.CreateBucket(bucketName)
	if err != nil && !IsAlreadyExists(err) {
		return err
	}
	return nil
}

// EnableVersioning turns on versioning for the bucket. The kops state store
// requires it.
func (s *ObjectStore) EnableVersioning(bucketName string) error {
	input := &s3.PutBucketVersioningInput{
		Bucket: aws.String(bucketName),
		VersioningConfiguration: &s3.VersioningConfiguration{
			Status: aws.String(s3.BucketVersioningStatusEnabled),
		},
	}

	_, err := s.client.PutBucketVersioning(input)
	if err != nil {
		return errors.Wrap(err, "enabling bucket versioning failed")
	}

	return nil
}

// CheckBucket checks the status of the given bucket.
func (s *ObjectStore) CheckBucket(bucketName string) error {
	input := &s3.HeadBucketInput{
		Bucket: aws.String(bucketName),
	}

	_, err := s.client.HeadBucket(input)
	if err != nil {
		if awsErr, ok := err.(awserr.Error); ok && awsErr.Code() == "NotFound" {
			err = errBucketNotFound{}
		}

		return errors.Wrap(err, "checking bucket failed")
	}

	return nil
}

// DeleteBucket removes a bucket from the object store.
func (s *ObjectStore) DeleteBucket(bucketName string) error {
	input := &s3.DeleteBucketInput{
		Bucket: aws.String(bucketName),
	}

	_, err := s.client.DeleteBucket(input)
	if err != nil {
		return errors.Wrap(err, "bucket deletion failed")
	}

	if s.waitForCompletion {
		err := s.client.WaitUntilBucketNotExists(&s3.HeadBucketInput{
			Bucket: aws.String(bucketName),
		})
		if err != nil {
			return errors.Wrap(err, "could not wait for bucket to be deleted")
		}
	}

	return nil
}
