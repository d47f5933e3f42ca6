package ssh

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path"

	"github.com/pkg/sftp"
	"github.com/rs/zerolog/log"
)

// WriteFile creates or truncates remotePath over SFTP and writes content to
// it, creating parent directories as needed.
func (c *Client) WriteFile(ctx context.Context, remotePath string, content []byte, mode os.FileMode) error {
	log.Debug().
		Str("host", c.config.Host).
		Str("remote", remotePath).
		Int("bytes", len(content)).
		Msg("writing file")

	sftpClient, err := c.createSFTPClient()
	if err != nil {
		return err
	}
	defer sftpClient.Close()

	if err := sftpClient.MkdirAll(path.Dir(remotePath)); err != nil {
		return &TransportError{Op: "write", Err: fmt.Errorf("failed to create remote directory: %w", err)}
	}

	remoteFile, err := sftpClient.Create(remotePath)
	if err != nil {
		return &TransportError{Op: "write", Err: fmt.Errorf("failed to create remote file: %w", err), IsTemporary: true}
	}
	defer remoteFile.Close()

	if _, err := copyWithContext(ctx, remoteFile, bytes.NewReader(content)); err != nil {
		return &TransportError{Op: "write", Err: fmt.Errorf("failed to write remote file: %w", err), IsTemporary: true}
	}

	if mode != 0 {
		if err := sftpClient.Chmod(remotePath, mode); err != nil {
			log.Warn().Err(err).Str("remote", remotePath).Msg("failed to set file permissions")
		}
	}

	return nil
}

func (c *Client) createSFTPClient() (*sftp.Client, error) {
	sshClient, err := c.getClient()
	if err != nil {
		return nil, err
	}

	sftpClient, err := sftp.NewClient(sshClient)
	if err != nil {
		return nil, &TransportError{
			Op:          "sftp-init",
			Err:         fmt.Errorf("failed to create SFTP client: %w", err),
			IsTemporary: true,
		}
	}
	return sftpClient, nil
}

// copyWithContext copies src to dst, checking ctx between chunks.
func copyWithContext(ctx context.Context, dst io.Writer, src io.Reader) (int64, error) {
	buf := make([]byte, 32*1024)
	var written int64

	for {
		if err := ctx.Err(); err != nil {
			return written, err
		}

		nr, err := src.Read(buf)
		if nr > 0 {
			nw, werr := dst.Write(buf[:nr])
			written += int64(nw)
			if werr != nil {
				return written, werr
			}
			if nr != nw {
				return written, io.ErrShortWrite
			}
		}
		if err == io.EOF {
			return written, nil
		}
		if err != nil {
			return written, err
		}
	}
}
